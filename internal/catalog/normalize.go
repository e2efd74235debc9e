package catalog

import (
	"strings"

	"github.com/charmbracelet/log"

	"github.com/vines90/mcp-prompt-server/pkg/types"
)

const untitledPrompt = "untitled"

// Normalize converts one raw record into a catalog prompt. It never fails:
// missing fields degrade to defaults and an unreadable argument field yields
// no parameters plus a warning on logger. ToolName is left empty; it is
// assigned by ResolveNames.
func Normalize(logger *log.Logger, raw types.RawRecord, ownerID string) types.Prompt {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = strings.TrimSpace(raw.Title)
	}
	if name == "" {
		name = untitledPrompt
	}

	category := strings.TrimSpace(raw.Category)
	description := strings.TrimSpace(raw.Description)
	if description == "" {
		description = generatedDescription(name, category)
	}

	decoded := DecodeArguments(raw.Arguments)
	if decoded.Kind == DecodeInvalid && logger != nil {
		logger.Warn("ignoring malformed prompt arguments", "id", raw.ID, "name", name, "error", decoded.Err)
	}

	var tags string
	if raw.Arguments.Kind == types.ArgumentText && decoded.Kind == DecodeEmpty {
		tags = strings.TrimSpace(raw.Arguments.Text)
	}

	source := raw.Source
	if source == "" {
		source = types.SourceStore
	}

	p := types.Prompt{
		ID:              raw.ID,
		DisplayName:     name,
		Description:     description,
		Parameters:      uniqueParameters(decoded.Params),
		Body:            raw.Content,
		Tags:            tags,
		Category:        category,
		Difficulty:      strings.TrimSpace(raw.Difficulty),
		IsPublic:        raw.IsPublic,
		OwnerID:         raw.OwnerID,
		CreatedAt:       raw.CreatedAt,
		UsageCount:      raw.UsageCount,
		LikesCount:      raw.LikesCount,
		Hotness:         raw.Hotness,
		PopularityScore: PopularityScore(raw),
		Source:          source,
	}
	if ownerID != "" {
		p.Ownership = types.OwnershipPublic
		if raw.OwnerID != "" && raw.OwnerID == ownerID {
			p.Ownership = types.OwnershipOwned
		}
	}
	return p
}

// PopularityScore weights hotness double against usage and likes.
func PopularityScore(raw types.RawRecord) float64 {
	return 2*raw.Hotness + float64(raw.UsageCount) + float64(raw.LikesCount)
}

func generatedDescription(name, category string) string {
	desc := "Prompt from catalog: " + name
	if category != "" {
		desc += " (category: " + category + ")"
	}
	return desc
}
