package domain

import "strings"

// SplitUseCases splits a use case field on commas, trims every tag and drops empties.
// Example: " Chatbot, CRM ,," -> ["Chatbot", "CRM"]
func SplitUseCases(useCase string) []string {
	if useCase == "" {
		return nil
	}
	parts := strings.Split(useCase, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

// FoldTag returns the matching key of a tag.
func FoldTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// HasUseCase reports whether the listing is tagged with tag, ignoring case.
func HasUseCase(l *Listing, tag string) bool {
	if l == nil {
		return false
	}
	want := FoldTag(tag)
	if want == "" {
		return false
	}
	for _, t := range SplitUseCases(l.UseCase) {
		if FoldTag(t) == want {
			return true
		}
	}
	return false
}
