package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// FileStore keeps tokens of all accounts in a single JSON document readable only by its owner
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(ctx context.Context, account string) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tokens, err := f.read()
	if err != nil {
		return nil, err
	}

	token, ok := tokens[normalizeAccount(account)]
	if !ok {
		return nil, nil
	}

	return token, nil
}

func (f *FileStore) Save(ctx context.Context, account string, token *oauth2.Token) error {
	if token == nil {
		return errors.New("cannot save nil token")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tokens, err := f.read()
	if err != nil {
		return err
	}

	tokens[normalizeAccount(account)] = token

	return f.write(tokens)
}

func (f *FileStore) Remove(ctx context.Context, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tokens, err := f.read()
	if err != nil {
		return err
	}

	key := normalizeAccount(account)
	if _, ok := tokens[key]; !ok {
		return nil
	}

	delete(tokens, key)

	return f.write(tokens)
}

func (f *FileStore) read() (map[string]*oauth2.Token, error) {
	tokens := make(map[string]*oauth2.Token)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return tokens, nil
	}

	if err != nil {
		return nil, fmt.Errorf("unable to read token cache: %w", err)
	}

	if len(data) == 0 {
		return tokens, nil
	}

	err = json.Unmarshal(data, &tokens)
	if err != nil {
		return nil, fmt.Errorf("unable to parse token cache %s: %w", f.path, err)
	}

	return tokens, nil
}

// write replaces the file atomically
func (f *FileStore) write(tokens map[string]*oauth2.Token) error {
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return fmt.Errorf("unable to create token cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("unable to write token cache: %w", err)
	}

	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("unable to write token cache: %w", err)
	}

	err = os.Chmod(tmp.Name(), 0600)
	if err != nil {
		return err
	}

	return os.Rename(tmp.Name(), f.path)
}
