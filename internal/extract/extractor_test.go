package extract

import (
	"testing"

	"codecollab/internal/vfs"
)

func TestExtractPatterns(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantCreated []string
		wantContent map[string]string
		wantLang    map[string]string
	}{
		{
			name:        "bare filename header",
			text:        "Here you go:\n```hello.py\nprint(\"hi\")\n```\nEnjoy!",
			wantCreated: []string{"hello.py"},
			wantContent: map[string]string{"hello.py": `print("hi")`},
			wantLang:    map[string]string{"hello.py": "py"},
		},
		{
			name:        "language and filename header",
			text:        "```javascript app.js\nconsole.log(1)\n```",
			wantCreated: []string{"app.js"},
			wantContent: map[string]string{"app.js": "console.log(1)"},
			wantLang:    map[string]string{"app.js": "javascript"},
		},
		{
			name:        "bare language header synthesizes a name",
			text:        "```python\nx = 1\n```",
			wantCreated: []string{"file1.py"},
			wantContent: map[string]string{"file1.py": "x = 1"},
			wantLang:    map[string]string{"file1.py": "python"},
		},
		{
			name:        "unknown language falls back to txt",
			text:        "```brainfuck\n++--\n```",
			wantCreated: []string{"file1.txt"},
			wantContent: map[string]string{"file1.txt": "++--"},
			wantLang:    map[string]string{"file1.txt": "brainfuck"},
		},
		{
			name: "multiple blocks in one reply",
			text: "```index.html\n<html></html>\n```\nand the styles:\n```css style.css\nbody {}\n```",
			wantCreated: []string{"index.html", "style.css"},
			wantContent: map[string]string{
				"index.html": "<html></html>",
				"style.css":  "body {}",
			},
			wantLang: map[string]string{"index.html": "html", "style.css": "css"},
		},
		{
			name:        "plain text reply is a no-op",
			text:        "Sure! First install the dependencies, then run the server.",
			wantCreated: nil,
			wantContent: map[string]string{},
		},
		{
			name:        "empty body rejected",
			text:        "```empty.js\n```",
			wantCreated: nil,
			wantContent: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine()
			store := vfs.NewStore()

			created := engine.Extract(tt.text, store)

			if len(created) != len(tt.wantCreated) {
				t.Fatalf("created = %v, want %v", created, tt.wantCreated)
			}
			for i, name := range tt.wantCreated {
				if created[i] != name {
					t.Errorf("created[%d] = %q, want %q", i, created[i], name)
				}
			}

			if store.Len() != len(tt.wantContent) {
				t.Errorf("store has %d files, want %d", store.Len(), len(tt.wantContent))
			}
			for name, content := range tt.wantContent {
				f, ok := store.Get(name)
				if !ok {
					t.Fatalf("missing file %q", name)
				}
				if f.Content != content {
					t.Errorf("content of %q = %q, want %q", name, f.Content, content)
				}
				if want, check := tt.wantLang[name]; check {
					if f.Language != want {
						t.Errorf("language of %q = %q, want %q", name, f.Language, want)
					}
				}
			}
		})
	}
}

func TestExtractIdempotentOverwrite(t *testing.T) {
	engine := NewEngine()
	store := vfs.NewStore()

	block := "```python greet.py\nprint(\"hello\")\n```"
	first := engine.Extract(block, store)
	if len(first) != 1 || first[0] != "greet.py" {
		t.Fatalf("first pass created %v", first)
	}

	second := engine.Extract(block, store)
	if len(second) != 0 {
		t.Fatalf("re-extraction created %v, want overwrite of existing key", second)
	}
	if store.Len() != 1 {
		t.Fatalf("store has %d files after re-extraction, want 1", store.Len())
	}
	f, _ := store.Get("greet.py")
	if f.Content != `print("hello")` {
		t.Errorf("content = %q", f.Content)
	}
}

func TestExtractSynthesizedNamesStayUnique(t *testing.T) {
	engine := NewEngine()
	store := vfs.NewStore()

	first := engine.Extract("```python\na = 1\n```", store)
	second := engine.Extract("```python\nb = 2\n```", store)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("created %v then %v, want one file each", first, second)
	}
	if first[0] == second[0] {
		t.Fatalf("both replies produced %q, want distinct synthesized names", first[0])
	}
	if store.Len() != 2 {
		t.Fatalf("store has %d files, want 2", store.Len())
	}
}

func TestExtractSynthesizedNameSkipsExistingKey(t *testing.T) {
	engine := NewEngine()
	store := vfs.NewStore()

	// An extracted file already occupies the first synthesized name.
	engine.Extract("```file1.py\ntaken = True\n```", store)

	created := engine.Extract("```python\nfresh = True\n```", store)
	if len(created) != 1 {
		t.Fatalf("created %v", created)
	}
	if created[0] == "file1.py" {
		t.Fatal("synthesized name collided with an existing key")
	}
}

func TestExtractAutoSelectsFirstNewFile(t *testing.T) {
	engine := NewEngine()
	store := vfs.NewStore()

	engine.Extract("```main.go\npackage main\n```\n```util.go\npackage main\n```", store)
	if got := store.Selected(); got != "main.go" {
		t.Errorf("selected = %q, want first discovered file", got)
	}

	// An existing selection is never displaced.
	engine.Extract("```other.go\npackage main\n```", store)
	if got := store.Selected(); got != "main.go" {
		t.Errorf("selected = %q after second pass, want main.go", got)
	}
}

func TestExtensionForLanguage(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{"python", "py"},
		{"Python", "py"},
		{"typescript", "ts"},
		{"shell", "sh"},
		{"docker", "dockerfile"},
		{"klingon", "txt"},
	}

	for _, tt := range tests {
		if got := ExtensionForLanguage(tt.lang); got != tt.want {
			t.Errorf("ExtensionForLanguage(%q) = %q, want %q", tt.lang, got, tt.want)
		}
	}
}
