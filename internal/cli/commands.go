package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/asaidimu/go-odm/core/persistence"
	"github.com/asaidimu/go-odm/core/query"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
)

// queryFlags collects predicates from --where clauses and a --file.
type queryFlags struct {
	where []string
	set   []string
	file  string
}

func (q *queryFlags) register(cmd *cobra.Command, withUpdate bool) {
	cmd.Flags().StringArrayVarP(&q.where, "where", "w", nil, `predicate "attribute operator value" (repeatable)`)
	cmd.Flags().StringVarP(&q.file, "file", "f", "", "YAML predicate file")
	if withUpdate {
		cmd.Flags().StringArrayVarP(&q.set, "set", "s", nil, `update directive "attribute operator value" (repeatable)`)
	}
}

// resolve returns the predicates and directives, file entries first.
func (q *queryFlags) resolve() ([]query.Predicate, []query.Directive, error) {
	var predicates []query.Predicate
	var directives []query.Directive
	if q.file != "" {
		file, err := LoadPredicateFile(q.file)
		if err != nil {
			return nil, nil, err
		}
		predicates = append(predicates, file.Where...)
		directives = append(directives, file.Update...)
	}
	for _, clause := range q.where {
		p, err := ParsePredicate(clause)
		if err != nil {
			return nil, nil, err
		}
		predicates = append(predicates, p)
	}
	for _, clause := range q.set {
		d, err := ParseDirective(clause)
		if err != nil {
			return nil, nil, err
		}
		directives = append(directives, d)
	}
	return predicates, directives, nil
}

// writeJSON prints v as relaxed MongoDB extended JSON on its own line.
func writeJSON(w io.Writer, v any) error {
	out, err := bson.MarshalExtJSON(v, false, false)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// parseKey converts a key argument according to --key-type.
func parseKey(raw, keyType string) (any, error) {
	switch keyType {
	case "string":
		return raw, nil
	case "int":
		return strconv.ParseInt(raw, 10, 64)
	default:
		return nil, fmt.Errorf("invalid key type %q: must be string or int", keyType)
	}
}

// readRecord reads a record from --data, or from --data-file ("-" is stdin).
func readRecord(cmd *cobra.Command, data, dataFile string) (persistence.Document, error) {
	raw := []byte(data)
	if dataFile != "" {
		var err error
		if dataFile == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
		} else {
			raw, err = os.ReadFile(dataFile)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
	}
	if len(raw) == 0 {
		return nil, errors.New("a record is required: use --data or --data-file")
	}
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}
	return persistence.Document(doc), nil
}

// NewTranslateCommand prints the native filter and update documents for a
// query without touching a store.
func NewTranslateCommand(opts *RootOptions) *cobra.Command {
	q := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Print the native filter for a predicate sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			predicates, directives, err := q.resolve()
			if err != nil {
				return err
			}
			translator := query.NewTranslator(opts.Logger, &query.TranslatorOptions{
				OverwriteDuplicates: opts.Config.OverwriteDuplicates,
			})
			filter, err := translator.Translate(predicates...)
			if err != nil {
				return err
			}
			result := bson.M{"filter": filter}
			if len(directives) > 0 {
				update, err := translator.TranslateUpdate(directives...)
				if err != nil {
					return err
				}
				result["update"] = update
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	q.register(cmd, true)
	return cmd
}

// NewFindCommand prints the documents matching a query, one per line.
func NewFindCommand(opts *RootOptions) *cobra.Command {
	q := &queryFlags{}
	var one bool
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Print the documents matching a predicate sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			predicates, _, err := q.resolve()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			storage, closer, err := OpenStorage(ctx, opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			defer closer()

			if one {
				doc, err := storage.FindOne(ctx, predicates...)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), doc)
			}

			var cursor persistence.Cursor
			if len(predicates) == 0 {
				cursor, err = storage.FindAll(ctx)
			} else {
				cursor, err = storage.Find(ctx, predicates...)
			}
			if err != nil {
				return err
			}
			defer cursor.Close(ctx)
			for cursor.Next(ctx) {
				if err := writeJSON(cmd.OutOrStdout(), cursor.Document()); err != nil {
					return err
				}
			}
			return cursor.Err()
		},
	}
	q.register(cmd, false)
	cmd.Flags().BoolVar(&one, "one", false, "print only the first match")
	return cmd
}

// NewGetCommand prints the document stored under a primary key.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	var keyType string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the document with the given primary key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0], keyType)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			storage, closer, err := OpenStorage(ctx, opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			defer closer()

			doc, err := storage.Get(ctx, key)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().StringVar(&keyType, "key-type", "string", "key type (string|int)")
	return cmd
}

// NewInsertCommand stores a record under a primary key.
func NewInsertCommand(opts *RootOptions) *cobra.Command {
	var keyType, data, dataFile string
	cmd := &cobra.Command{
		Use:   "insert <key>",
		Short: "Insert a record under the given primary key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0], keyType)
			if err != nil {
				return err
			}
			record, err := readRecord(cmd, data, dataFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			storage, closer, err := OpenStorage(ctx, opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			defer closer()

			if err := storage.Insert(ctx, key, record); err != nil {
				if errors.Is(err, persistence.ErrKeyExists) {
					return fmt.Errorf("key %v already exists", key)
				}
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "inserted %v\n", key)
			return err
		},
	}
	cmd.Flags().StringVar(&keyType, "key-type", "string", "key type (string|int)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "record as extended JSON")
	cmd.Flags().StringVar(&dataFile, "data-file", "", `file holding the record, "-" for stdin`)
	return cmd
}

// NewUpdateCommand replaces the record stored under a primary key.
func NewUpdateCommand(opts *RootOptions) *cobra.Command {
	var keyType, data, dataFile string
	cmd := &cobra.Command{
		Use:   "update <key>",
		Short: "Replace the record with the given primary key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0], keyType)
			if err != nil {
				return err
			}
			record, err := readRecord(cmd, data, dataFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			storage, closer, err := OpenStorage(ctx, opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			defer closer()

			if err := storage.Update(ctx, key, record); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "updated %v\n", key)
			return err
		},
	}
	cmd.Flags().StringVar(&keyType, "key-type", "string", "key type (string|int)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "record as extended JSON")
	cmd.Flags().StringVar(&dataFile, "data-file", "", `file holding the record, "-" for stdin`)
	return cmd
}

// NewModifyCommand applies update directives to every matching document.
func NewModifyCommand(opts *RootOptions) *cobra.Command {
	q := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "modify",
		Short: "Apply update directives to the documents matching a query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			predicates, directives, err := q.resolve()
			if err != nil {
				return err
			}
			if len(directives) == 0 {
				return errors.New("no update directives: use --set or an update section in --file")
			}
			ctx := cmd.Context()
			storage, closer, err := OpenStorage(ctx, opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			defer closer()

			n, err := storage.Modify(ctx, predicates, directives)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "matched %d\n", n)
			return err
		},
	}
	q.register(cmd, true)
	return cmd
}

// NewRemoveCommand deletes the documents matching a query. Removing every
// document requires --all.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	q := &queryFlags{}
	var all bool
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete the documents matching a predicate sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			predicates, _, err := q.resolve()
			if err != nil {
				return err
			}
			if len(predicates) == 0 && !all {
				return errors.New("refusing to remove every document without --all")
			}
			ctx := cmd.Context()
			storage, closer, err := OpenStorage(ctx, opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			defer closer()

			n, err := storage.Remove(ctx, predicates...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", n)
			return err
		},
	}
	q.register(cmd, false)
	cmd.Flags().BoolVar(&all, "all", false, "allow removing every document")
	return cmd
}
