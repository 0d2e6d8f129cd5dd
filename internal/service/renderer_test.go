package service

import (
	"testing"

	"github.com/google/uuid"

	"github.com/nexocrm/automation-engine/internal/models"
)

func testTemplate(content string) *models.MessageTemplate {
	return &models.MessageTemplate{
		ID:        uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Name:      "welcome",
		Content:   content,
		Greetings: []string{"Hello", "Hi there", "Hey"},
		Endings:   []string{"Best", "Cheers"},
	}
}

func testContact() *models.Contact {
	return &models.Contact{
		ID:        uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		Name:      "Ana Souza",
		FirstName: "Ana",
		LastName:  "Souza",
		Number:    "+5511999990001",
		Email:     "ana@example.com",
	}
}

func TestRenderer_Render(t *testing.T) {
	tests := []struct {
		name     string
		template *models.MessageTemplate
		contact  *models.Contact
		want     string
		wantErr  bool
	}{
		{
			name:     "contact fields substituted",
			template: testTemplate("{first_name} {last_name}, call us at any time"),
			contact:  testContact(),
			want:     "Ana Souza, call us at any time",
			wantErr:  false,
		},
		{
			name:     "unknown placeholder becomes empty",
			template: testTemplate("Hi {first_name}, your {discount_code} awaits"),
			contact:  testContact(),
			want:     "Hi Ana, your  awaits",
			wantErr:  false,
		},
		{
			name:     "repeated placeholders all substituted",
			template: testTemplate("{first_name}, yes {first_name}, you"),
			contact:  testContact(),
			want:     "Ana, yes Ana, you",
			wantErr:  false,
		},
		{
			name:     "malformed placeholder left alone",
			template: testTemplate("Hi {first_name"),
			contact:  testContact(),
			want:     "Hi {first_name",
			wantErr:  false,
		},
		{
			name:     "nil contact",
			template: testTemplate("Hi"),
			contact:  nil,
			want:     "",
			wantErr:  true,
		},
		{
			name:     "nil template",
			template: nil,
			contact:  testContact(),
			want:     "",
			wantErr:  true,
		},
		{
			name: "template without greetings is rejected",
			template: &models.MessageTemplate{
				ID:      uuid.New(),
				Content: "{greeting} Ana",
				Endings: []string{"Best"},
			},
			contact: testContact(),
			want:    "",
			wantErr: true,
		},
		{
			name: "template without endings is rejected",
			template: &models.MessageTemplate{
				ID:        uuid.New(),
				Content:   "Ana {ending}",
				Greetings: []string{"Hi"},
			},
			contact: testContact(),
			want:    "",
			wantErr: true,
		},
		{
			name: "empty content is rejected",
			template: &models.MessageTemplate{
				ID:        uuid.New(),
				Greetings: []string{"Hi"},
				Endings:   []string{"Best"},
			},
			contact: testContact(),
			want:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer()
			got, err := r.Render(tt.template, tt.contact)

			if (err != nil) != tt.wantErr {
				t.Errorf("Render() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Greeting and ending selection is deterministic per (template, contact)
// pair: retries and crash-replays must render an identical message.
func TestRenderer_DeterministicVariantSelection(t *testing.T) {
	r := NewRenderer()
	template := testTemplate("{greeting} {first_name}! {ending}")
	contact := testContact()

	first, err := r.Render(template, contact)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for i := 0; i < 10; i++ {
		again, err := r.Render(template, contact)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if again != first {
			t.Fatalf("Render() not deterministic: %q != %q", again, first)
		}
	}
}

func TestRenderer_SingleVariantAlwaysUsed(t *testing.T) {
	r := NewRenderer()
	template := testTemplate("{greeting}, {first_name}. {ending}")
	template.Greetings = []string{"Good morning"}
	template.Endings = []string{"See you soon"}

	got, err := r.Render(template, testContact())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := "Good morning, Ana. See you soon"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestPickVariant_SaltSeparatesChoices(t *testing.T) {
	variants := []string{"a", "b", "c", "d", "e", "f", "g"}
	templateID := uuid.New()

	// Different contacts should not all collapse onto one variant.
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		seen[pickVariant(variants, templateID, uuid.New(), 0)] = true
	}
	if len(seen) < 2 {
		t.Errorf("pickVariant() chose a single variant across 64 contacts")
	}
}
