// Package runner orchestrates a contract run: artifacts in, contracts
// evaluated, results out.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/dbtcontracts/pkg/contract"
)

// Runner evaluates a configured set of contracts against artifact
// snapshots.
type Runner struct {
	contracts []*contract.ParentContract
	log       *slog.Logger
}

// New builds a runner from the contracts section of the config file: a
// mapping of resource keys (models, sources, macros) to contract
// blocks. Contracts run in sorted key order.
func New(config map[string]any, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	keys := make([]string, 0, len(config))
	for key := range config {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	contracts := make([]*contract.ParentContract, 0, len(keys))
	for _, key := range keys {
		block, ok := config[key].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("contract %q: expected a mapping, got %T", key, config[key])
		}
		c, err := contract.NewContract(key, block)
		if err != nil {
			return nil, fmt.Errorf("contract %q: %w", key, err)
		}
		contracts = append(contracts, c)
	}

	logger.Debug("configured contracts", "count", len(contracts))
	return &Runner{contracts: contracts, log: logger}, nil
}

// Contracts returns the configured contracts in key order.
func (r *Runner) Contracts() []*contract.ParentContract {
	return r.contracts
}

// Options narrow a validation run.
type Options struct {
	// Contract selects a single contract by key, e.g. "models" or
	// "models.columns". Empty runs every configured contract.
	Contract string

	// Terms narrows the run to the named terms.
	Terms []string
}

// Run is the outcome of one validation pass.
type Run struct {
	ID      string             `json:"run_id"`
	Results []*contract.Result `json:"results"`
}

// selection pairs a configured contract with whether only its child is
// selected. A child-only selection still scopes the children through
// the parent's conditions.
type selection struct {
	parent    *contract.ParentContract
	childOnly bool
}

// Validate runs the selected contracts concurrently over the shared
// contract context and collects the recorded results.
func (r *Runner) Validate(ctx context.Context, cctx *contract.Context, opts Options) (*Run, error) {
	selected, err := r.selectContracts(opts.Contract)
	if err != nil {
		return nil, err
	}

	run := &Run{ID: uuid.NewString()}
	r.log.Debug("starting contract run",
		"run_id", run.ID, "contracts", len(selected), "terms", opts.Terms)

	g, _ := errgroup.WithContext(ctx)
	for _, sel := range selected {
		g.Go(func() error {
			if sel.childOnly {
				parents := sel.parent.FilteredItems(cctx.Manifest)
				_, err := sel.parent.Child().ValidateTerms(parents, cctx, opts.Terms)
				return err
			}
			_, err := sel.parent.ValidateTerms(cctx, opts.Terms)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	run.Results = cctx.Results()
	r.log.Info("contract run finished", "run_id", run.ID, "violations", len(run.Results))
	return run, nil
}

// selectContracts resolves a contract key to the contracts to run.
func (r *Runner) selectContracts(key string) ([]selection, error) {
	if key == "" {
		all := make([]selection, len(r.contracts))
		for i, c := range r.contracts {
			all[i] = selection{parent: c}
		}
		return all, nil
	}

	parentKey, childKey, hasChild := strings.Cut(key, ".")
	parentKey = contract.NormalizeKey(parentKey)

	for _, c := range r.contracts {
		if c.Key() != parentKey {
			continue
		}
		if !hasChild {
			return []selection{{parent: c}}, nil
		}
		if c.Child() != nil && c.Child().Key() == contract.NormalizeKey(childKey) {
			return []selection{{parent: c, childOnly: true}}, nil
		}
	}
	return nil, fmt.Errorf("no configured contract for key %q", key)
}
