package domain

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

func TestPatchApplyShallowMerge(t *testing.T) {
	l := &Listing{
		ID:          "id-1",
		Name:        "Old",
		URL:         "https://old.example",
		Description: "keep me",
		Region:      RegionEurope,
	}

	name := "New"
	region := RegionFinland
	active := true
	Patch{Name: &name, Region: &region, Active: &active}.Apply(l)

	if l.ID != "id-1" {
		t.Errorf("ID changed to %q", l.ID)
	}
	if l.Name != "New" || l.Region != RegionFinland || !l.Active {
		t.Errorf("patched fields not applied: %+v", l)
	}
	if l.Description != "keep me" || l.URL != "https://old.example" {
		t.Errorf("untouched fields modified: %+v", l)
	}
}

func TestPatchEmpty(t *testing.T) {
	if !(Patch{}).Empty() {
		t.Error("zero patch should be empty")
	}
	by := "admin"
	if (Patch{ApprovedBy: &by}).Empty() {
		t.Error("patch with a field should not be empty")
	}
}

func TestCloneCopiesApprovedAt(t *testing.T) {
	at := time.Now()
	l := &Listing{ID: "x", ApprovedAt: &at}
	c := l.Clone()
	*c.ApprovedAt = at.Add(time.Hour)
	if !l.ApprovedAt.Equal(at) {
		t.Error("Clone shares ApprovedAt with the original")
	}
	if (*Listing)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestSplitUseCases(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{input: "Chatbot, CRM", want: []string{"Chatbot", "CRM"}},
		{input: " a ,, b ,", want: []string{"a", "b"}},
		{input: "", want: nil},
		{input: " , ", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SplitUseCases(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitUseCases(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if len(got) > 0 && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitUseCases(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestHasUseCase(t *testing.T) {
	l := &Listing{UseCase: "Chatbot, crm"}
	if !HasUseCase(l, "CRM") {
		t.Error("expected case-insensitive match on CRM")
	}
	if !HasUseCase(l, " chatbot ") {
		t.Error("expected match on trimmed chatbot")
	}
	if HasUseCase(l, "chat") {
		t.Error("partial tag should not match")
	}
	if HasUseCase(nil, "crm") {
		t.Error("nil listing should not match")
	}
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: NotFound("abc"), want: "NOT_FOUND"},
		{err: Invalid("url", "bad"), want: "VALIDATION_ERROR"},
		{err: fmt.Errorf("wrapped: %w", ErrRateLimited), want: "RATE_LIMITED"},
		{err: Unavailable("save", errors.New("disk full")), want: "STORAGE_UNAVAILABLE"},
		{err: errors.New("boom"), want: "INTERNAL_ERROR"},
		{err: nil, want: ""},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
