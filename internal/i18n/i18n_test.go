package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "ErrExamNotOpen")
	if got != "This exam is not open right now." {
		t.Errorf("T(ErrExamNotOpen) = %q", got)
	}
}

func TestTranslateIndonesian(t *testing.T) {
	ctx := initLang(t, "id")

	got := T(ctx, "ErrDuplicateSubmission")
	if got != "Anda sudah mengumpulkan ujian ini." {
		t.Errorf("T(ErrDuplicateSubmission) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "QuestionsImported", 1)
	if got1 != "1 question imported." {
		t.Errorf("Tp(QuestionsImported, 1) = %q, want '1 question imported.'", got1)
	}

	got5 := Tp(ctx, "QuestionsImported", 5)
	if got5 != "5 questions imported." {
		t.Errorf("Tp(QuestionsImported, 5) = %q, want '5 questions imported.'", got5)
	}

	ctx = initLang(t, "id")
	if got := Tp(ctx, "QuestionsImported", 3); got != "3 soal berhasil diimpor." {
		t.Errorf("Tp(QuestionsImported, 3) [id] = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "RegradeDone", map[string]any{"Updated": 7, "Attempted": 8})
	if got != "Regrade finished: 7 of 8 submissions updated." {
		t.Errorf("Td(RegradeDone) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestNegotiate(t *testing.T) {
	initLang(t, "id")

	tests := []struct {
		header string
		want   string
	}{
		{"", "id"},
		{"en-US,en;q=0.9", "en"},
		{"id-ID", "id"},
		{"fr-FR,fr;q=0.9", "id"},
		{"fr;q=0.9,en;q=0.5", "en"},
	}
	for _, tt := range tests {
		if got := Negotiate(tt.header); got != tt.want {
			t.Errorf("Negotiate(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	initLang(t, "en")

	var got string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrForbidden")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got != "Anda tidak diizinkan melakukan itu." {
		t.Errorf("localized message = %q", got)
	}
	if cl := rec.Header().Get("Content-Language"); cl != "id" {
		t.Errorf("Content-Language = %q, want id", cl)
	}
}
