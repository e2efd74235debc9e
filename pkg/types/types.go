package types

import "time"

// ArgumentKind tags how a backing store carried a record's argument field.
type ArgumentKind int

const (
	// ArgumentAbsent means the field was missing or null.
	ArgumentAbsent ArgumentKind = iota
	// ArgumentText means the field was a string, possibly JSON-encoded.
	ArgumentText
	// ArgumentList means the field was already a structured parameter list.
	ArgumentList
)

// ArgumentField is the free-form "arguments/tags" value of a raw record.
type ArgumentField struct {
	Kind ArgumentKind
	Text string
	List []Parameter
}

// TextArguments wraps a string argument field.
func TextArguments(s string) ArgumentField {
	return ArgumentField{Kind: ArgumentText, Text: s}
}

// ListArguments wraps an already structured argument field.
func ListArguments(params []Parameter) ArgumentField {
	return ArgumentField{Kind: ArgumentList, List: params}
}

// Record sources.
const (
	SourceStore = "store"
	SourceFile  = "file"
)

// RawRecord is one prompt row as returned by a backing store. Any field may be
// zero when the store did not provide it.
type RawRecord struct {
	ID             string
	Name           string
	Title          string
	Content        string
	Description    string
	Arguments      ArgumentField
	Category       string
	UsageCount     int64
	LikesCount     int64
	FavoritesCount int64
	Hotness        float64
	Difficulty     string
	IsPublic       bool
	OwnerID        string
	CreatedAt      time.Time
	Source         string
}

// Parameter is one declared prompt input.
type Parameter struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    *bool  `json:"required,omitempty" yaml:"required,omitempty"`
}

// IsRequired reports whether callers are expected to supply the parameter.
func (p Parameter) IsRequired() bool {
	return p.Required == nil || *p.Required
}

// Ownership classifies a prompt relative to the requesting identity.
type Ownership string

const (
	OwnershipOwned  Ownership = "owned"
	OwnershipPublic Ownership = "public"
)

// Prompt is the canonical catalog entry exposed as a tool.
type Prompt struct {
	ID              string      `json:"id"`
	ToolName        string      `json:"tool_name"`
	DisplayName     string      `json:"display_name"`
	Description     string      `json:"description"`
	Parameters      []Parameter `json:"parameters"`
	Body            string      `json:"body"`
	Tags            string      `json:"tags,omitempty"`
	Category        string      `json:"category,omitempty"`
	Difficulty      string      `json:"difficulty,omitempty"`
	IsPublic        bool        `json:"is_public"`
	OwnerID         string      `json:"owner_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at,omitempty"`
	UsageCount      int64       `json:"usage_count"`
	LikesCount      int64       `json:"likes_count"`
	Hotness         float64     `json:"hotness"`
	PopularityScore float64     `json:"popularity_score"`
	Ownership       Ownership   `json:"ownership,omitempty"`
	Source          string      `json:"source"`
}

// ReportsUsage reports whether invocations should be counted in the backing store.
func (p Prompt) ReportsUsage() bool {
	return p.Source == SourceStore && p.ID != ""
}

// StoreStats summarizes the backing store catalog.
type StoreStats struct {
	TotalPrompts int64   `json:"total_prompts"`
	UniqueOwners int64   `json:"unique_owners"`
	Categories   int64   `json:"categories"`
	TotalUsage   int64   `json:"total_usage"`
	AverageUsage float64 `json:"average_usage"`
}

// PromptSummary is the compact listing shape returned by management tools.
type PromptSummary struct {
	ToolName        string    `json:"tool_name"`
	DisplayName     string    `json:"display_name"`
	Category        string    `json:"category,omitempty"`
	Difficulty      string    `json:"difficulty,omitempty"`
	PopularityScore float64   `json:"popularity_score"`
	Ownership       Ownership `json:"ownership,omitempty"`
}

// Summarize returns the listing shape of p.
func Summarize(p Prompt) PromptSummary {
	return PromptSummary{
		ToolName:        p.ToolName,
		DisplayName:     p.DisplayName,
		Category:        p.Category,
		Difficulty:      p.Difficulty,
		PopularityScore: p.PopularityScore,
		Ownership:       p.Ownership,
	}
}
