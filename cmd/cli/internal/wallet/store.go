package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/address"
)

var (
	// ErrWalletNotFound is returned when a wallet doesn't exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletExists is returned when trying to create a duplicate.
	ErrWalletExists = errors.New("wallet already exists")

	// ErrNoDefaultWallet is returned when no default is set.
	ErrNoDefaultWallet = errors.New("no default wallet set")

	// ErrInvalidKeypair is returned when a keypair file is invalid.
	ErrInvalidKeypair = errors.New("invalid keypair")

	// ErrInvalidName is returned for wallet names that are not safe file names.
	ErrInvalidName = errors.New("invalid wallet name")
)

var validName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,63}$`)

// Wallet is the metadata of a stored keypair.
type Wallet struct {
	Name      string          `json:"name"`
	Address   address.Address `json:"address"`
	CreatedAt time.Time       `json:"created_at"`
}

// Config is the wallet index file.
type Config struct {
	Version       int               `json:"version"`
	DefaultWallet string            `json:"default_wallet,omitempty"`
	Wallets       map[string]Wallet `json:"wallets"`
}

// Store manages keypairs on the local filesystem. Keypairs are kept as JSON arrays
// of the 64 byte ed25519 private key, the format of Solana keypair files.
type Store struct {
	baseDir string
}

// NewStore creates a new wallet store.
// If baseDir is empty, uses ~/.payroll/wallets/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".payroll", "wallets")
	}

	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create wallet directory: %w", err)
	}

	store := &Store{baseDir: baseDir}

	if err := store.ensureConfig(); err != nil {
		return nil, err
	}

	log.Debug().Str("baseDir", baseDir).Msg("wallet store initialized")

	return store, nil
}

// Create generates a new ed25519 keypair and stores it under name.
func (s *Store) Create(name string) (*Wallet, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	return s.add(name, key)
}

// Import copies an existing keypair file into the store under name.
func (s *Store) Import(name, path string) (*Wallet, error) {
	key, err := ReadKeypair(path)
	if err != nil {
		return nil, err
	}

	return s.add(name, key)
}

// Get retrieves wallet metadata by name.
func (s *Store) Get(name string) (*Wallet, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	w, ok := cfg.Wallets[name]
	if !ok {
		return nil, ErrWalletNotFound
	}

	return &w, nil
}

// GetDefault retrieves the default wallet.
func (s *Store) GetDefault() (*Wallet, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.DefaultWallet == "" {
		return nil, ErrNoDefaultWallet
	}

	return s.Get(cfg.DefaultWallet)
}

// Resolve returns the named wallet, or the default wallet when name is empty.
func (s *Store) Resolve(name string) (*Wallet, error) {
	if name == "" {
		return s.GetDefault()
	}
	return s.Get(name)
}

// List returns all stored wallets ordered by name.
func (s *Store) List() ([]Wallet, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	wallets := make([]Wallet, 0, len(cfg.Wallets))
	for _, w := range cfg.Wallets {
		wallets = append(wallets, w)
	}
	slices.SortFunc(wallets, func(a, b Wallet) int {
		return strings.Compare(a.Name, b.Name)
	})

	return wallets, nil
}

// Delete removes a wallet and its keypair file.
func (s *Store) Delete(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Wallets[name]; !ok {
		return ErrWalletNotFound
	}

	if err := os.Remove(s.keypairPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove keypair: %w", err)
	}

	delete(cfg.Wallets, name)

	if cfg.DefaultWallet == name {
		cfg.DefaultWallet = ""
	}

	if err := s.saveConfig(cfg); err != nil {
		return err
	}

	log.Info().Str("name", name).Msg("wallet deleted")

	return nil
}

// SetDefault sets the default wallet.
func (s *Store) SetDefault(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Wallets[name]; !ok {
		return ErrWalletNotFound
	}

	cfg.DefaultWallet = name

	return s.saveConfig(cfg)
}

// LoadPrivateKey loads the keypair of a wallet for signing.
func (s *Store) LoadPrivateKey(name string) (ed25519.PrivateKey, error) {
	w, err := s.Get(name)
	if err != nil {
		return nil, err
	}

	key, err := ReadKeypair(s.keypairPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	if a, _ := address.FromPublicKey(key.Public().(ed25519.PublicKey)); a != w.Address {
		return nil, fmt.Errorf("%w: keypair of %q does not match address %s", ErrInvalidKeypair, name, w.Address)
	}

	return key, nil
}

// ReadKeypair reads a keypair file holding a JSON array of 64 bytes.
func ReadKeypair(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair: %w", err)
	}

	var raw []byte
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeypair, ed25519.PrivateKeySize, len(ints))
	}
	for _, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte value %d out of range", ErrInvalidKeypair, v)
		}
		raw = append(raw, byte(v))
	}

	key := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !key.Equal(ed25519.PrivateKey(raw)) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidKeypair)
	}

	return key, nil
}

// WriteKeypair writes key to path as a JSON array of 64 bytes with 0600 permissions.
func WriteKeypair(path string, key ed25519.PrivateKey) error {
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}

	data, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("failed to marshal keypair: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write keypair: %w", err)
	}

	return nil
}

func (s *Store) add(name string, key ed25519.PrivateKey) (*Wallet, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if _, err := s.Get(name); err == nil {
		return nil, ErrWalletExists
	}

	addr, err := address.FromPublicKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}

	keypairPath := s.keypairPath(name)
	if err := WriteKeypair(keypairPath, key); err != nil {
		return nil, err
	}

	w := Wallet{
		Name:      name,
		Address:   addr,
		CreatedAt: time.Now().UTC(),
	}

	cfg, err := s.loadConfig()
	if err != nil {
		os.Remove(keypairPath)
		return nil, err
	}

	cfg.Wallets[name] = w

	// The first wallet becomes the default.
	if len(cfg.Wallets) == 1 {
		cfg.DefaultWallet = name
	}

	if err := s.saveConfig(cfg); err != nil {
		os.Remove(keypairPath)
		return nil, err
	}

	log.Info().
		Str("name", name).
		Stringer("address", addr).
		Str("keypairPath", keypairPath).
		Msg("wallet stored")

	return &w, nil
}

func (s *Store) keypairPath(name string) string {
	return filepath.Join(s.baseDir, name+".json")
}

func (s *Store) configPath() string {
	return filepath.Join(s.baseDir, "config.json")
}

func (s *Store) ensureConfig() error {
	if _, err := os.Stat(s.configPath()); err == nil {
		return nil
	}

	return s.saveConfig(&Config{
		Version: 1,
		Wallets: make(map[string]Wallet),
	})
}

func (s *Store) loadConfig() (*Config, error) {
	data, err := os.ReadFile(s.configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Wallets == nil {
		cfg.Wallets = make(map[string]Wallet)
	}

	return &cfg, nil
}

// saveConfig writes the config file atomically.
func (s *Store) saveConfig(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := s.configPath()
	tempPath := configPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
