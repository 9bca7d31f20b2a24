// Package config provides configuration management with encrypted API key storage.
// It supports loading, saving, and partial updates of the extraction pipeline
// configuration.
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// encryptionKeyEnvVar is the environment variable name for the AES encryption key.
const encryptionKeyEnvVar = "DOCFLOW_ENCRYPTION_KEY"

// encryptedPrefix marks a value as AES-encrypted in the config file.
const encryptedPrefix = "enc:"

// Config holds all pipeline configuration.
type Config struct {
	OCR     OCRConfig     `json:"ocr"`
	Extract ExtractConfig `json:"extract"`
}

// OCRConfig holds image recognition configuration. When APIKey and Endpoint
// are set, the remote vision service is used; otherwise recognition falls
// back to the local engine with the given languages.
type OCRConfig struct {
	Endpoint  string `json:"endpoint"`
	APIKey    string `json:"api_key"`
	ModelName string `json:"model_name"`
	Languages string `json:"languages"`
}

// ExtractConfig holds extraction limits and tuning.
type ExtractConfig struct {
	MaxFileSizeMB   int `json:"max_file_size_mb"`
	TimeoutSeconds  int `json:"timeout_seconds"`
	SparseThreshold int `json:"sparse_threshold"`
	ChunkSize       int `json:"chunk_size"`
	Overlap         int `json:"overlap"`
}

// Manager manages loading, saving, and updating configuration.
type Manager struct {
	configPath    string
	config        *Config
	mu            sync.RWMutex
	encryptionKey []byte // 32-byte AES-256 key
}

// NewManager creates a Manager for the given config file path. The AES
// encryption key is read from the DOCFLOW_ENCRYPTION_KEY environment
// variable; if unset, a random 32-byte key is generated and persisted.
func NewManager(configPath string) (*Manager, error) {
	key, err := getOrCreateEncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("encryption key error: %w", err)
	}
	return &Manager{
		configPath:    configPath,
		encryptionKey: key,
	}, nil
}

// NewManagerWithKey creates a Manager with an explicit encryption key (for testing).
func NewManagerWithKey(configPath string, key []byte) (*Manager, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes for AES-256")
	}
	return &Manager{
		configPath:    configPath,
		encryptionKey: key,
	}, nil
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		OCR: OCRConfig{
			Endpoint:  "https://api.openai.com/v1",
			ModelName: "gpt-4o-mini",
			Languages: "eng",
		},
		Extract: ExtractConfig{
			MaxFileSizeMB:   50,
			TimeoutSeconds:  300,
			SparseThreshold: 50,
			ChunkSize:       512,
			Overlap:         128,
		},
	}
}

// Load reads the config file from disk and decrypts the API key.
// If the file does not exist, it initializes with default values and saves.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			m.config = DefaultConfig()
			return m.saveLocked()
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if cfg.OCR.APIKey, err = m.decryptIfNeeded(cfg.OCR.APIKey); err != nil {
		return fmt.Errorf("decrypt OCR API key: %w", err)
	}

	m.applyDefaults(&cfg)
	m.config = &cfg
	return nil
}

// Save writes the current config to disk with the API key encrypted.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveLocked()
}

// saveLocked writes config to disk. Caller must hold at least a read lock.
func (m *Manager) saveLocked() error {
	if m.config == nil {
		return errors.New("no config loaded")
	}

	// Serialize a copy carrying the encrypted key.
	out := *m.config
	out.OCR.APIKey = m.encryptIfNeeded(m.config.OCR.APIKey)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return nil
	}
	c := *m.config
	return &c
}

// Update applies partial updates to the configuration and saves to disk.
// Supported keys: "ocr.endpoint", "ocr.api_key", "ocr.model_name",
// "ocr.languages", "extract.max_file_size_mb", "extract.timeout_seconds",
// "extract.chunk_size", "extract.overlap".
func (m *Manager) Update(updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config == nil {
		m.config = DefaultConfig()
	}

	for key, val := range updates {
		if err := m.applyUpdate(key, val); err != nil {
			return fmt.Errorf("update key %q: %w", key, err)
		}
	}

	return m.saveLocked()
}

func (m *Manager) applyUpdate(key string, val interface{}) error {
	switch key {
	case "ocr.endpoint":
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
		m.config.OCR.Endpoint = s
	case "ocr.api_key":
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
		m.config.OCR.APIKey = s
	case "ocr.model_name":
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
		m.config.OCR.ModelName = s
	case "ocr.languages":
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
		m.config.OCR.Languages = s
	case "extract.max_file_size_mb":
		n, err := toInt(val)
		if err != nil {
			return err
		}
		m.config.Extract.MaxFileSizeMB = n
	case "extract.timeout_seconds":
		n, err := toInt(val)
		if err != nil {
			return err
		}
		m.config.Extract.TimeoutSeconds = n
	case "extract.sparse_threshold":
		n, err := toInt(val)
		if err != nil {
			return err
		}
		m.config.Extract.SparseThreshold = n
	case "extract.chunk_size":
		n, err := toInt(val)
		if err != nil {
			return err
		}
		m.config.Extract.ChunkSize = n
	case "extract.overlap":
		n, err := toInt(val)
		if err != nil {
			return err
		}
		m.config.Extract.Overlap = n
	default:
		return fmt.Errorf("unknown config key")
	}
	return nil
}

// applyDefaults fills in zero-value fields with defaults.
func (m *Manager) applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.OCR.Endpoint == "" {
		cfg.OCR.Endpoint = defaults.OCR.Endpoint
	}
	if cfg.OCR.ModelName == "" {
		cfg.OCR.ModelName = defaults.OCR.ModelName
	}
	if cfg.OCR.Languages == "" {
		cfg.OCR.Languages = defaults.OCR.Languages
	}
	if cfg.Extract.MaxFileSizeMB == 0 {
		cfg.Extract.MaxFileSizeMB = defaults.Extract.MaxFileSizeMB
	}
	if cfg.Extract.TimeoutSeconds == 0 {
		cfg.Extract.TimeoutSeconds = defaults.Extract.TimeoutSeconds
	}
	if cfg.Extract.SparseThreshold == 0 {
		cfg.Extract.SparseThreshold = defaults.Extract.SparseThreshold
	}
	if cfg.Extract.ChunkSize == 0 {
		cfg.Extract.ChunkSize = defaults.Extract.ChunkSize
	}
	if cfg.Extract.Overlap == 0 {
		cfg.Extract.Overlap = defaults.Extract.Overlap
	}
}

// --- AES-GCM encryption helpers ---

// encrypt encrypts plaintext using AES-256-GCM.
func (m *Manager) encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	block, err := aes.NewCipher(m.encryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

// decrypt decrypts an AES-256-GCM encrypted hex string.
func (m *Manager) decrypt(ciphertextHex string) (string, error) {
	if ciphertextHex == "" {
		return "", nil
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("hex decode: %w", err)
	}
	block, err := aes.NewCipher(m.encryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// encryptIfNeeded encrypts a value and adds the "enc:" prefix.
// Empty strings are returned as-is.
func (m *Manager) encryptIfNeeded(value string) string {
	if value == "" {
		return ""
	}
	encrypted, err := m.encrypt(value)
	if err != nil {
		// Fallback: return as-is (should not happen with valid key)
		return value
	}
	return encryptedPrefix + encrypted
}

// decryptIfNeeded decrypts a value if it has the "enc:" prefix.
func (m *Manager) decryptIfNeeded(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if strings.HasPrefix(value, encryptedPrefix) {
		return m.decrypt(value[len(encryptedPrefix):])
	}
	// Not encrypted (e.g., manually edited config); return as-is
	return value, nil
}

// --- Encryption key management ---

func getOrCreateEncryptionKey() ([]byte, error) {
	// 1. Check environment variable first
	keyHex := os.Getenv(encryptionKeyEnvVar)
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
		}
		return key, nil
	}

	// 2. Try to read from persistent key file
	keyFile := "./data/encryption.key"
	if data, err := os.ReadFile(keyFile); err == nil {
		keyHex = strings.TrimSpace(string(data))
		if key, err := hex.DecodeString(keyHex); err == nil && len(key) == 32 {
			return key, nil
		}
	}

	// 3. Generate a new random key and persist it
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	keyHex = hex.EncodeToString(key)
	os.MkdirAll("./data", 0755)
	if err := os.WriteFile(keyFile, []byte(keyHex+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("save encryption key: %w", err)
	}
	return key, nil
}

func toInt(val interface{}) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case float32:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", val)
	}
}
