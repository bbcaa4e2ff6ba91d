package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anjiri1684/quiz_audio/utils"
)

var (
	ErrAudioNotFound = errors.New("audio file not found")
	ErrInvalidName   = errors.New("invalid audio file name")
)

// Mirror receives a copy of every artifact written to the store.
type Mirror interface {
	Mirror(ctx context.Context, name string, data []byte) error
}

// AudioStore keeps audio artifacts as flat files under Dir. Question audio is
// named {quiz_id}_{question_index}.mp3 and is also reachable by that name.
type AudioStore struct {
	Dir    string
	mirror Mirror
}

func NewAudioStore(dir string) *AudioStore {
	if dir == "" {
		dir = "audio"
	}
	return &AudioStore{Dir: dir}
}

func (s *AudioStore) SetMirror(m Mirror) {
	s.mirror = m
}

// Init creates the base directory. Calling it again is harmless.
func (s *AudioStore) Init() error {
	return os.MkdirAll(s.Dir, 0o755)
}

func FileName(quizID string, index int) string {
	return fmt.Sprintf("%s_%d.mp3", quizID, index)
}

// Write stores data for a question and returns its reference, replacing any
// earlier artifact for the same position.
func (s *AudioStore) Write(quizID string, index int, data []byte) (string, error) {
	name := FileName(quizID, index)
	if err := s.WriteNamed(name, data); err != nil {
		return "", err
	}
	return name, nil
}

func (s *AudioStore) Exists(quizID string, index int) bool {
	_, err := s.ReadPath(quizID, index)
	return err == nil
}

func (s *AudioStore) ReadPath(quizID string, index int) (string, error) {
	return s.PathNamed(FileName(quizID, index))
}

func (s *AudioStore) Read(quizID string, index int) ([]byte, error) {
	return s.ReadNamed(FileName(quizID, index))
}

// WriteNamed writes to a temp file and renames it so readers never observe a
// partially written artifact.
func (s *AudioStore) WriteNamed(name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	tmp := filepath.Join(s.Dir, utils.TempFileName(name))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(s.Dir, name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", name, err)
	}

	if s.mirror != nil {
		go s.mirrorCopy(name, append([]byte(nil), data...))
	}
	return nil
}

func (s *AudioStore) ReadNamed(name string) ([]byte, error) {
	path, err := s.PathNamed(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrAudioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// PathNamed resolves name to an existing regular file inside the store.
func (s *AudioStore) PathNamed(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrAudioNotFound
	}
	return path, nil
}

func (s *AudioStore) mirrorCopy(name string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.mirror.Mirror(ctx, name, data); err != nil {
		log.Printf("🔥 Failed to mirror %s: %v", name, err)
	}
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") ||
		strings.HasPrefix(name, ".") {
		return ErrInvalidName
	}
	return nil
}
