// Package tool holds the named callables a ToolNode dispatches to.
//
// Tools implement langchaingo's tools.Tool interface, so any tool written
// for langchaingo can be registered directly. Func adapts a plain function.
//
//	reg, err := tool.NewRegistry(
//		tool.NewFunc("echo", "returns its input", func(_ context.Context, in string) (string, error) {
//			return in, nil
//		}),
//	)
package tool
