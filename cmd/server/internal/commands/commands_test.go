package commands

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/ledger"
)

func TestServeCmdValidate(t *testing.T) {
	valid := func() *ServeCmd {
		return &ServeCmd{
			ProgramID:        ledger.DefaultProgramID.String(),
			StoreType:        "memory",
			TraceSampleRatio: 1,
		}
	}

	require.NoError(t, valid().Validate())

	cmd := valid()
	cmd.Cert = "cert.pem"
	require.ErrorContains(t, cmd.Validate(), "--cert and --key")

	cmd = valid()
	cmd.TraceSampleRatio = 1.5
	require.ErrorContains(t, cmd.Validate(), "--trace-sample-ratio")

	cmd = valid()
	cmd.ProgramID = "not-base58-0OIl"
	require.ErrorContains(t, cmd.Validate(), "invalid --program-id")

	cmd = valid()
	cmd.StoreType = "postgres"
	require.ErrorContains(t, cmd.Validate(), "connection string is required")

	cmd.PostgresStore = PostgresStoreFlags{ConnString: "postgres://localhost/payroll", MaxConns: 2, MinConns: 4}
	require.ErrorContains(t, cmd.Validate(), "exceeds")

	cmd.PostgresStore.MinConns = 1
	require.NoError(t, cmd.Validate())
}

func TestServeCmdWarnings(t *testing.T) {
	cmd := &ServeCmd{Faucet: true}
	warnings := cmd.warnings()
	require.Len(t, warnings, 3)
	require.Contains(t, warnings[0], "--faucet")
	require.Contains(t, warnings[1], "--audience")
	require.Contains(t, warnings[2], "TLS is disabled")

	cmd = &ServeCmd{Audience: "https://payroll.example.com", Cert: "cert.pem", Key: "key.pem"}
	require.Empty(t, cmd.warnings())
}

func TestOpenStore_journalSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.journal")
	cmd := &ServeCmd{StoreType: "memory", JournalPath: path}

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	authority, err := address.FromPublicKey(pub)
	require.NoError(t, err)

	accounts, closeStore, err := cmd.openStore(ctx, zerolog.Nop())
	require.NoError(t, err)

	program := ledger.New(accounts)
	_, err = program.Airdrop(ctx, authority, 5_000_000_000)
	require.NoError(t, err)
	_, err = program.CreateOrganization(ctx, authority, "Acme")
	require.NoError(t, err)
	closeStore()

	accounts, closeStore, err = cmd.openStore(ctx, zerolog.Nop())
	require.NoError(t, err)
	defer closeStore()

	orgs, err := ledger.New(accounts).ListOrganizationsByAuthority(ctx, authority)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	require.Equal(t, "Acme", orgs[0].Name)

	before, err := program.Balance(ctx, authority)
	require.NoError(t, err)
	after, err := ledger.New(accounts).Balance(ctx, authority)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestJournalCommands(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.journal")

	serve := &ServeCmd{StoreType: "memory", JournalPath: path}
	accounts, closeStore, err := serve.openStore(ctx, zerolog.Nop())
	require.NoError(t, err)

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	authority, err := address.FromPublicKey(pub)
	require.NoError(t, err)

	program := ledger.New(accounts)
	_, err = program.Airdrop(ctx, authority, 5_000_000_000)
	require.NoError(t, err)
	_, err = program.CreateOrganization(ctx, authority, "Acme")
	require.NoError(t, err)
	closeStore()

	globals := &Globals{}

	var out bytes.Buffer
	verify := &JournalVerifyCmd{Path: path, out: &out}
	require.NoError(t, verify.Run(ctx, globals))
	require.Contains(t, out.String(), "records:   2\n")
	require.Contains(t, out.String(), "sequences: 1..2\n")
	require.Contains(t, out.String(), "truncated: false\n")

	archiveDir := filepath.Join(dir, "archive")
	archive := &JournalArchiveCmd{Path: path, Dir: archiveDir}
	require.NoError(t, archive.Run(ctx, globals))

	matches, err := filepath.Glob(filepath.Join(archiveDir, "*.zst"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	cleanup := &JournalCleanupCmd{Dir: archiveDir, RetentionDays: 30}
	require.NoError(t, cleanup.Run(globals))

	matches, err = filepath.Glob(filepath.Join(archiveDir, "*.zst"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "fresh archives are kept")
}
