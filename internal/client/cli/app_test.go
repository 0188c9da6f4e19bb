package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamvault/sharecore/internal/client/config"
	"github.com/teamvault/sharecore/internal/client/share"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.CacheDSN = filepath.Join(t.TempDir(), "cache.db")

	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestRootCmd_CommandTree(t *testing.T) {
	app := newTestApp(t)
	root := app.rootCmd()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Contains(t, names, "keys")
	assert.Contains(t, names, "share")
	assert.Contains(t, names, "group")

	keys, _, err := root.Find([]string{"keys"})
	require.NoError(t, err)
	var sub []string
	for _, cmd := range keys.Commands() {
		sub = append(sub, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"sync", "import", "import-private", "list", "clear"}, sub)
}

func TestKeysImportCommand(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey("alice", "alice@example.com", "x25519", 0)
	require.NoError(t, err)
	armored, err := key.GetArmoredPublicKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "alice.asc")
	require.NoError(t, os.WriteFile(path, []byte(armored), 0o600))

	userID := uuid.NewString()
	require.NoError(t, app.Run(ctx, []string{"keys", "import", userID, path}))

	rec, err := app.keys.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, armored, rec.Armored)
}

func TestShareRequest_Parsing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "acos": [
    {"type": "folder", "id": "f1", "resources": [{"id": "r1", "ciphertext": "-----BEGIN..."}]}
  ],
  "changes": [
    {"aco": "folder", "aco_foreign_key": "f1", "aro_foreign_key": "u1", "operation": "create"}
  ]
}`), 0o600))

	req, err := loadShareRequest(path)
	require.NoError(t, err)

	acos := req.acos()
	require.Len(t, acos, 1)
	assert.Equal(t, share.ACO{
		Type:      share.ACOTypeFolder,
		ID:        "f1",
		Resources: []share.Resource{{ID: "r1", Ciphertext: "-----BEGIN..."}},
	}, acos[0])

	changes := req.changes()
	require.Len(t, changes, 1)
	assert.Equal(t, share.Change{
		ACOType:       share.ACOTypeFolder,
		ACOForeignKey: "f1",
		AROForeignKey: "u1",
		Operation:     "create",
	}, changes[0])
}
