package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/phrasemark/dbopen"
	"github.com/hazyhaar/phrasemark/phrase"

	_ "modernc.org/sqlite"
)

func TestAllowed(t *testing.T) {
	s := Default()
	assert.True(t, s.Allowed("app.intercom.com"))
	assert.True(t, s.Allowed("WWW.App.Intercom.com"))
	assert.False(t, s.Allowed("intercom.com"))
	assert.False(t, s.Allowed(""))

	s.AllowedHosts = []string{"www.Example.org"}
	assert.True(t, s.Allowed("example.org"))

	s.Enabled = false
	assert.False(t, s.Allowed("example.org"))
}

func TestDecode_KeepsDefaultsForMissingKeys(t *testing.T) {
	s, err := Decode([]byte(`phrases: [{find: нельзя}]`))
	require.NoError(t, err)
	assert.True(t, s.Enabled)
	assert.Equal(t, []string{DefaultHost}, s.AllowedHosts)
	assert.Equal(t, []phrase.Phrase{{Find: "нельзя"}}, s.Phrases)
}

func TestDecode_LegacyShape(t *testing.T) {
	s, err := Decode([]byte(`{"enabled": false, "sites": [], "phrases": [{"find": "нельзя", "replace": "можно"}]}`))
	require.NoError(t, err)
	assert.False(t, s.Enabled)
	assert.Equal(t, []string{}, s.AllowedHosts)
	assert.Equal(t, []phrase.Phrase{{Find: "нельзя", Replacements: []string{"можно"}}}, s.Phrases)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte("phrases: {find: [unclosed"))
	assert.Error(t, err)
}

func TestFileProvider_MissingFileIsDefault(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "none.yaml"), nil)
	s, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestFileProvider_SaveLoad(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "cfg", "settings.yaml"), nil)
	want := Settings{
		Enabled:      true,
		AllowedHosts: []string{"example.org"},
		Phrases:      []phrase.Phrase{{Find: "неправильно", Replacements: []string{"правильно"}}},
	}
	require.NoError(t, p.Save(context.Background(), want))

	got, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileProvider_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: true\n"), 0o644))
	p := NewFileProvider(path, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Settings, 4)
	go func() { _ = p.Watch(ctx, func(s Settings) { got <- s }) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("enabled: false\nsites: [example.org]\n"), 0o644))

	select {
	case s := <-got:
		assert.False(t, s.Enabled)
		assert.Equal(t, []string{"example.org"}, s.AllowedHosts)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload")
	}
}

func TestStore_EmptyIsDefault(t *testing.T) {
	st, err := NewStore(dbopen.OpenMemory(t))
	require.NoError(t, err)

	s, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestStore_SaveLoad(t *testing.T) {
	st, err := NewStore(dbopen.OpenMemory(t))
	require.NoError(t, err)
	ctx := context.Background()

	want := Settings{
		Enabled:      false,
		AllowedHosts: []string{"a.example", "b.example"},
		Phrases: []phrase.Phrase{
			{Find: "нельзя", Replacements: []string{"можно", "возможно"}},
			{Find: "неправильно", Replacements: []string{}},
		},
	}
	require.NoError(t, st.Save(ctx, want))
	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A second save replaces rather than appends.
	want.Phrases = want.Phrases[:1]
	require.NoError(t, st.Save(ctx, want))
	got, err = st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Phrases, got.Phrases)
}

func TestStore_LegacyRow(t *testing.T) {
	db := dbopen.OpenMemory(t)
	st, err := NewStore(db)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO phrases (position, find, replacements) VALUES (0, 'нельзя', 'можно')`)
	require.NoError(t, err)

	s, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []phrase.Phrase{{Find: "нельзя", Replacements: []string{"можно"}}}, s.Phrases)
}

func TestStore_Watch(t *testing.T) {
	st, err := NewStore(dbopen.OpenMemory(t), WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	got := make(chan Settings, 4)
	go func() {
		_ = st.Watch(ctx, func(s Settings) { got <- s })
		close(done)
	}()
	defer func() { cancel(); <-done }()

	time.Sleep(100 * time.Millisecond)
	next := Default()
	next.Phrases = []phrase.Phrase{{Find: "нельзя"}}
	require.NoError(t, st.Save(context.Background(), next))

	select {
	case s := <-got:
		assert.Equal(t, next.Phrases[0].Find, s.Phrases[0].Find)
	case <-time.After(3 * time.Second):
		t.Fatal("no change observed")
	}
}
