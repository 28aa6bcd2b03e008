package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/statespace/internal/models"
	"github.com/roach88/statespace/internal/modelspec"
)

// ModelInfo describes one model in the models listing.
type ModelInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Params      map[string]int `json:"params,omitempty"`
	Slots       int            `json:"slots,omitempty"`
	Rules       []string       `json:"rules,omitempty"`
}

// NewModelsCommand creates the models command.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models [file.cue]",
		Short: "List built-in models or the models of a CUE rule file",
		Long: `List the built-in models with their parameters and defaults.

Given a CUE rule file, list the models it defines instead. Parameters are
unified into the file's params field so defaults can be overridden.

Examples:
  statespace models
  statespace models ./mutex.cue
  statespace models ./ring.cue --param size=5 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	params := cmd.Flags().StringToIntP("param", "p", nil, "parameter for a rule file as key=value")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		out := newFormatter(rootOpts, cmd)

		var infos []ModelInfo
		if len(args) == 0 {
			for _, b := range models.Builtins() {
				infos = append(infos, ModelInfo{Name: b.Name, Description: b.Description, Params: b.Defaults})
			}
		} else {
			compiled, err := modelspec.LoadFile(args[0], *params)
			if err != nil {
				out.Error(CodeModel, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to load rule file", err)
			}
			for _, m := range compiled {
				info := ModelInfo{Name: m.Label, Description: m.Description, Slots: len(m.Initial)}
				for _, r := range m.Rules {
					info.Rules = append(info.Rules, r.Name)
				}
				infos = append(infos, info)
			}
		}

		if out.JSON() {
			return out.Success(infos)
		}
		return writeModels(out, infos)
	}
	return cmd
}

func writeModels(out *OutputFormatter, infos []ModelInfo) error {
	tw := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPARAMS\tDESCRIPTION")
	for _, info := range infos {
		var detail []string
		for _, k := range slices.Sorted(maps.Keys(info.Params)) {
			detail = append(detail, fmt.Sprintf("%s=%d", k, info.Params[k]))
		}
		if info.Slots > 0 {
			detail = append(detail, fmt.Sprintf("slots=%d", info.Slots))
			detail = append(detail, "rules="+strings.Join(info.Rules, ","))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, strings.Join(detail, " "), info.Description)
	}
	return tw.Flush()
}
