package plan

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// BlockKind is the closed tagged-union discriminator for blocks.
// Unknown kinds fail at decode time with the valid list.
type BlockKind string

const (
	BlockCommand             BlockKind = "COMMAND"
	BlockFileOperation        BlockKind = "FILE_OPERATION"
	BlockTemplateGeneration   BlockKind = "TEMPLATE_GENERATION"
	BlockGraphQuery           BlockKind = "GRAPH_QUERY"
	BlockOpenRewrite          BlockKind = "OPENREWRITE"
	BlockAIPrompt             BlockKind = "AI_PROMPT"
	BlockAIPromptBatch        BlockKind = "AI_PROMPT_BATCH"
	BlockInteractiveValidation BlockKind = "INTERACTIVE_VALIDATION"
)

var validBlockKinds = []BlockKind{
	BlockCommand, BlockFileOperation, BlockTemplateGeneration, BlockGraphQuery,
	BlockOpenRewrite, BlockAIPrompt, BlockAIPromptBatch, BlockInteractiveValidation,
}

// Block is the common shape every block kind shares, plus every
// kind-specific parameter flattened into one struct. Only the fields
// relevant to Kind are meaningful; Validate enforces which ones are
// required.
type Block struct {
	Kind               BlockKind `yaml:"type"`
	Name               string    `yaml:"name,omitempty"`
	Description        string    `yaml:"description,omitempty"`
	EnableIf           string    `yaml:"enable_if,omitempty"`
	OutputVariable     string    `yaml:"output-variable,omitempty"`
	WorkingDirectory   string    `yaml:"working-directory,omitempty"`
	TimeoutSeconds     int       `yaml:"timeout-seconds,omitempty"`
	ContinueOnFailure  bool      `yaml:"continue-on-failure,omitempty"`

	// COMMAND
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`

	// FILE_OPERATION / TEMPLATE_GENERATION
	Operation string `yaml:"operation,omitempty"` // create, createDir, copy, move, delete
	Path      string `yaml:"path,omitempty"`
	Content   string `yaml:"content,omitempty"`
	Source    string `yaml:"source,omitempty"`
	Dest      string `yaml:"dest,omitempty"`
	Template  string `yaml:"template,omitempty"`

	// GRAPH_QUERY
	QueryKind string   `yaml:"query-kind,omitempty"` // byType, byAnyTag, byAllTag, byTypeAndAnyTag, byTypeAndAllTag
	NodeType  string   `yaml:"node-type,omitempty"`
	Tags      []string `yaml:"tags,omitempty"`

	// OPENREWRITE
	Recipe      string `yaml:"recipe,omitempty"`
	FilePattern string `yaml:"file-pattern,omitempty"`
	InputNodes  string `yaml:"input-nodes,omitempty"`

	// AI_PROMPT / AI_PROMPT_BATCH
	PromptTemplate string `yaml:"prompt-template,omitempty"`

	// INTERACTIVE_VALIDATION
	Message        string `yaml:"message,omitempty"`
	ValidationType string `yaml:"validation-type,omitempty"` // manualConfirm, review, approval
	Required       bool   `yaml:"required,omitempty"`
}

// UnmarshalYAML decodes the common envelope, validates the kind against
// the closed set, and flattens all remaining fields into Block.
func (b *Block) UnmarshalYAML(value *yaml.Node) error {
	type rawBlock Block
	var raw rawBlock
	if err := value.Decode(&raw); err != nil {
		return err
	}
	known := false
	for _, k := range validBlockKinds {
		if raw.Kind == k {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("plan: unknown block type %q, valid types are %v", raw.Kind, validBlockKinds)
	}
	*b = Block(raw)
	return b.validateKindFields()
}

func (b *Block) validateKindFields() error {
	switch b.Kind {
	case BlockCommand:
		if b.Command == "" {
			return fmt.Errorf("plan: COMMAND block %q missing command", b.Name)
		}
	case BlockFileOperation:
		if b.Path == "" {
			return fmt.Errorf("plan: FILE_OPERATION block %q missing path", b.Name)
		}
		switch b.Operation {
		case "create", "createDir", "copy", "move", "delete":
		default:
			return fmt.Errorf("plan: FILE_OPERATION block %q has invalid operation %q", b.Name, b.Operation)
		}
	case BlockTemplateGeneration:
		if b.Template == "" || b.Path == "" {
			return fmt.Errorf("plan: TEMPLATE_GENERATION block %q requires template and path", b.Name)
		}
	case BlockGraphQuery:
		switch b.QueryKind {
		case "byType", "byAnyTag", "byAllTag", "byTypeAndAnyTag", "byTypeAndAllTag":
		default:
			return fmt.Errorf("plan: GRAPH_QUERY block %q has invalid query-kind %q", b.Name, b.QueryKind)
		}
	case BlockOpenRewrite:
		if b.Recipe == "" {
			return fmt.Errorf("plan: OPENREWRITE block %q missing recipe", b.Name)
		}
		if b.FilePattern == "" && b.InputNodes == "" {
			return fmt.Errorf("plan: OPENREWRITE block %q needs file-pattern or input-nodes", b.Name)
		}
	case BlockAIPrompt:
		if b.PromptTemplate == "" {
			return fmt.Errorf("plan: AI_PROMPT block %q missing prompt-template", b.Name)
		}
	case BlockAIPromptBatch:
		if b.PromptTemplate == "" || b.InputNodes == "" {
			return fmt.Errorf("plan: AI_PROMPT_BATCH block %q requires prompt-template and input-nodes", b.Name)
		}
	case BlockInteractiveValidation:
		switch b.ValidationType {
		case "manualConfirm", "review", "approval":
		default:
			return fmt.Errorf("plan: INTERACTIVE_VALIDATION block %q has invalid validation-type %q", b.Name, b.ValidationType)
		}
	}
	return nil
}
