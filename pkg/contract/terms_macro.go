package contract

import (
	"github.com/leapstack-labs/dbtcontracts/pkg/artifact"
)

func init() {
	RegisterTerm(TermDef{
		Name:        TermHasType,
		Description: "Macro argument must declare a type.",
		Build: func(options map[string]any) (Term, error) {
			if err := decodeOptions(options, &struct{}{}); err != nil {
				return nil, err
			}
			return hasType{}, nil
		},
	})
}

type hasType struct{ metadataTerm }

func (hasType) Name() string { return TermHasType }

func (hasType) Run(item artifact.Resource, parent artifact.Node, ctx *Context) bool {
	arg, ok := item.(*artifact.MacroArgument)
	if !ok {
		return true
	}
	if arg.Type == "" {
		ctx.AddResult(TermHasType, "Argument does not have a type configured", item, parent)
		return false
	}
	return true
}
