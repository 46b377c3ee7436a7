// Command arbor prints trees stored in adjacency-list tables.
//
//	arbor --config arbor.yaml trees --entity category --depth 2
//	arbor --config arbor.yaml descendants 42 --entity category --format json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/jacentio/arbor/internal/appconfig"
	"github.com/jacentio/arbor/internal/record"
	"github.com/jacentio/arbor/tree"
)

type recordRepo = tree.Repository[string, *record.Record]
type recordNode = tree.Node[string, *record.Record]

type options struct {
	configPath string
	entity     string
	depth      int
	relations  []string
	format     string
	label      string
	flat       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "arbor",
		Short:        "Read trees from adjacency-list tables",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "arbor.yaml", "configuration file")
	root.PersistentFlags().StringVarP(&opts.entity, "entity", "e", "", "entity type (defaults to the first configured)")
	root.PersistentFlags().IntVarP(&opts.depth, "depth", "d", -1, "maximum depth below each root; -1 for unbounded")
	root.PersistentFlags().StringSliceVarP(&opts.relations, "relations", "r", nil, "relations to load (comma-separated)")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", "text", "output format: text or json")
	root.PersistentFlags().StringVarP(&opts.label, "label", "l", "", "column shown in text output (defaults to name, title or label)")

	root.AddCommand(
		&cobra.Command{
			Use:   "roots",
			Short: "List root nodes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, opts, func(ctx context.Context, repo *recordRepo, findOpts tree.FindOptions) (any, error) {
					return repo.FindRoots(ctx, findOpts)
				})
			},
		},
		&cobra.Command{
			Use:   "trees",
			Short: "Print every tree",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, opts, func(ctx context.Context, repo *recordRepo, findOpts tree.FindOptions) (any, error) {
					return repo.FindTrees(ctx, findOpts)
				})
			},
		},
		newDescendantsCmd(opts),
		newMappingsCmd(opts),
	)
	return root
}

func newDescendantsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "descendants <id>",
		Short: "Print a node and its descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, repo *recordRepo, findOpts tree.FindOptions) (any, error) {
				if !opts.flat {
					return repo.FindDescendantsTreeByID(ctx, args[0], findOpts)
				}
				root, err := repo.FindByID(ctx, args[0], findOpts)
				if err != nil {
					return nil, err
				}
				return repo.FindDescendants(ctx, root, findOpts)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.flat, "flat", false, "list nodes without assembling the tree")
	return cmd
}

func newMappingsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mappings",
		Short: "Show configured entity types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(opts.configPath)
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ENTITY\tTABLE\tPARENT\tCHILDREN")
			for _, name := range reg.EntityTypes() {
				table, _ := reg.TableIdentifier(name)
				parent, _ := reg.ParentColumnName(name)
				children, _ := reg.ChildrenFieldName(name)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, table, parent, children)
			}
			return w.Flush()
		},
	}
}

type query func(ctx context.Context, repo *recordRepo, opts tree.FindOptions) (any, error)

// run loads the configuration, opens the executor and prints the result of q.
func run(cmd *cobra.Command, opts *options, q query) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	cfg, err := appconfig.Load(opts.configPath)
	if err != nil {
		return err
	}
	entity := cfg.Entities[0]
	if opts.entity != "" {
		if entity, err = cfg.Entity(opts.entity); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	exec, closeExec, err := cfg.Open(ctx)
	if err != nil {
		return err
	}
	defer closeExec()

	repos, err := cfg.Repositories(exec, cfg.Logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	findOpts := tree.FindOptions{Relations: opts.relations}
	if opts.depth >= 0 {
		findOpts.Depth = tree.Depth(opts.depth)
	}

	result, err := q(ctx, repos[entity.Name], findOpts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printText(out, result, opts.label)
}

func printText(w io.Writer, result any, labelCol string) error {
	tp := treeprint.New()
	switch v := result.(type) {
	case []*recordNode:
		for _, n := range v {
			addNode(tp, n, labelCol)
		}
	case *recordNode:
		addNode(tp, v, labelCol)
	case []*record.Record:
		for _, r := range v {
			tp.AddNode(label(r, labelCol))
		}
	default:
		return fmt.Errorf("cannot print %T", result)
	}
	_, err := io.WriteString(w, tp.String())
	return err
}

func addNode(parent treeprint.Tree, n *recordNode, labelCol string) {
	if n.IsLeaf() {
		parent.AddNode(label(n.Entity, labelCol))
		return
	}
	branch := parent.AddBranch(label(n.Entity, labelCol))
	for _, c := range n.Children {
		addNode(branch, c, labelCol)
	}
}

// label renders a record as "id name".
func label(r *record.Record, col string) string {
	cols := []string{col}
	if col == "" {
		cols = []string{"name", "title", "label"}
	}
	for _, c := range cols {
		if v, ok := r.Fields[c]; ok && v != nil {
			return strings.TrimSpace(fmt.Sprintf("%s %v", r.ID, v))
		}
	}
	return r.ID
}
