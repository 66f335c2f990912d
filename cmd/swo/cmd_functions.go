package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/spiderwasp/internal/benchmarks"
)

type functionInfo struct {
	Name        string  `json:"name"`
	Dim         int     `json:"dim,omitempty"`
	Description string  `json:"description,omitempty"`
	Minimum     float64 `json:"minimum"`
}

func newFunctionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the available benchmark functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := benchmarks.Default()
			var infos []functionInfo
			for _, name := range reg.Names() {
				fn, err := reg.Lookup(name)
				if err != nil {
					return err
				}
				info := functionInfo{Name: name, Dim: fn.Dim, Description: fn.Description}
				dim := fn.Dim
				if dim == 0 {
					dim = 2
				}
				if fn.Optimum != nil {
					if opt := fn.Optimum(dim); opt != nil {
						info.Minimum = opt.Value
					}
				}
				infos = append(infos, info)
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), infos)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDIM\tMINIMUM\tDESCRIPTION")
			for _, info := range infos {
				dim := "any"
				if info.Dim > 0 {
					dim = fmt.Sprint(info.Dim)
				}
				fmt.Fprintf(tw, "%s\t%s\t%.4f\t%s\n", info.Name, dim, info.Minimum, info.Description)
			}
			return tw.Flush()
		},
	}
}
