package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/entityorm/internal/cli/ui"
	"github.com/conduit-lang/entityorm/internal/demo"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// entityDescription is the exported form of an entity definition
type entityDescription struct {
	Type         string                  `yaml:"type"`
	Table        string                  `yaml:"table"`
	Caption      string                  `yaml:"caption,omitempty"`
	ReadOnly     bool                    `yaml:"read_only,omitempty"`
	KeyGenerated bool                    `yaml:"key_generated,omitempty"`
	OrderBy      string                  `yaml:"order_by,omitempty"`
	Columns      []columnDescription     `yaml:"columns"`
	ForeignKeys  []foreignKeyDescription `yaml:"foreign_keys,omitempty"`
	Derived      []string                `yaml:"derived,omitempty"`
	Transient    []string                `yaml:"transient,omitempty"`
}

type columnDescription struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"`
	Caption    string `yaml:"caption,omitempty"`
	PrimaryKey bool   `yaml:"primary_key,omitempty"`
	Nullable   bool   `yaml:"nullable"`
	Insertable bool   `yaml:"insertable"`
	Updatable  bool   `yaml:"updatable"`
	MaxLength  int    `yaml:"max_length,omitempty"`
}

type foreignKeyDescription struct {
	Name       string   `yaml:"name"`
	References string   `yaml:"references"`
	Columns    []string `yaml:"columns"`
	FetchDepth int      `yaml:"fetch_depth"`
}

// NewSchemaCommand creates the schema command
func NewSchemaCommand(opts *globalOptions) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "schema [entity-type...]",
		Short: "Show the demo domain entity definitions",
		Long: `Show the demo domain entity definitions in dependency order, referenced
entity types first. Entity types may be limited by name.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			entities, err := demo.Entities()
			if err != nil {
				return err
			}
			definitions, err := selectDefinitions(entities, args)
			if err != nil {
				return err
			}
			descriptions := make([]entityDescription, len(definitions))
			for i, def := range definitions {
				descriptions[i] = describe(def)
			}
			if asYAML {
				return writeYAML(cmd.OutOrStdout(), descriptions)
			}
			writeDescriptions(cmd.OutOrStdout(), descriptions, opts.noColor)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "output the definitions as YAML")
	return cmd
}

// selectDefinitions returns the definitions named by names in dependency
// order, all definitions when no names are given
func selectDefinitions(entities *schema.Entities, names []string) ([]*schema.EntityDefinition, error) {
	ordered, err := entities.DependencyOrder()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return ordered, nil
	}

	known := make([]string, len(ordered))
	for i, def := range ordered {
		known[i] = def.Type().Name
	}
	requested := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := entities.ByName(name); !ok {
			return nil, ui.UnknownEntityTypeError(name, known)
		}
		requested[name] = true
	}

	var result []*schema.EntityDefinition
	for _, def := range ordered {
		if requested[def.Type().Name] {
			result = append(result, def)
		}
	}
	return result, nil
}

func describe(def *schema.EntityDefinition) entityDescription {
	description := entityDescription{
		Type:         def.Type().String(),
		Table:        def.TableName(),
		Caption:      def.Caption(),
		ReadOnly:     def.ReadOnly(),
		KeyGenerated: !schema.IsManual(def.KeyGenerator()),
	}
	if orderBy := def.OrderBy(); orderBy != nil {
		description.OrderBy = orderBy.SQL(def)
	}
	for _, column := range def.Columns() {
		description.Columns = append(description.Columns, columnDescription{
			Name:       column.ColumnName(),
			Kind:       column.Attribute().Kind().String(),
			Caption:    column.Caption(),
			PrimaryKey: column.PrimaryKey(),
			Nullable:   column.Nullable(),
			Insertable: column.Insertable(),
			Updatable:  column.Updatable(),
			MaxLength:  column.MaxLength(),
		})
	}
	for _, fk := range def.ForeignKeys() {
		foreignKey := fk.ForeignKey()
		fkDescription := foreignKeyDescription{
			Name:       foreignKey.Name(),
			References: foreignKey.ReferencedType().String(),
			FetchDepth: fk.FetchDepth(),
		}
		for _, ref := range foreignKey.References() {
			fkDescription.Columns = append(fkDescription.Columns, ref.Column.Name()+" -> "+ref.Foreign.Name())
		}
		description.ForeignKeys = append(description.ForeignKeys, fkDescription)
	}
	for _, attribute := range def.Attributes() {
		switch attribute.(type) {
		case *schema.DerivedDefinition:
			description.Derived = append(description.Derived, attribute.Attribute().Name())
		case *schema.TransientDefinition:
			description.Transient = append(description.Transient, attribute.Attribute().Name())
		}
	}
	return description
}

func writeYAML(w io.Writer, descriptions []entityDescription) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(descriptions); err != nil {
		return fmt.Errorf("failed to encode definitions: %w", err)
	}
	return encoder.Close()
}

func writeDescriptions(w io.Writer, descriptions []entityDescription, noColor bool) {
	for _, description := range descriptions {
		ui.Header(w, description.Type, noColor)

		properties := ui.NewKeyValueTable(w, noColor)
		properties.AddRow("Table", description.Table)
		if description.Caption != "" {
			properties.AddRow("Caption", description.Caption)
		}
		if description.ReadOnly {
			properties.AddRow("Read only", "yes")
		}
		if description.KeyGenerated {
			properties.AddRow("Key", "generated")
		}
		if description.OrderBy != "" {
			properties.AddRow("Order by", description.OrderBy)
		}
		if len(description.Derived) > 0 {
			properties.AddRow("Derived", strings.Join(description.Derived, ", "))
		}
		if len(description.Transient) > 0 {
			properties.AddRow("Transient", strings.Join(description.Transient, ", "))
		}
		properties.Render()
		fmt.Fprintln(w)

		columns := ui.NewTable(w, []string{"Column", "Kind", "Key", "Nullable", "Updatable", "Caption"}, noColor)
		for _, column := range description.Columns {
			key := ""
			if column.PrimaryKey {
				key = "pk"
			}
			columns.AddRow(column.Name, column.Kind, key, yesNo(column.Nullable), yesNo(column.Updatable), column.Caption)
		}
		columns.Render()

		if len(description.ForeignKeys) > 0 {
			fmt.Fprintln(w)
			foreignKeys := ui.NewTable(w, []string{"Foreign key", "References", "Columns", "Fetch depth"}, noColor)
			for _, fk := range description.ForeignKeys {
				foreignKeys.AddRow(fk.Name, fk.References, strings.Join(fk.Columns, ", "), strconv.Itoa(fk.FetchDepth))
			}
			foreignKeys.Render()
		}
		fmt.Fprintln(w)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
