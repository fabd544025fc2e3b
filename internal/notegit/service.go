// Package notegit keeps a git repository per folder so every note edit is a
// recoverable revision.
package notegit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"notelab/api/internal/store"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type NoteContent struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags,omitempty"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) EnsureFolderRepo(folderID, author string) error {
	lock := s.folderLock(folderID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(folderID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, ".folder"), []byte(folderID+"\n"), 0o644); err != nil {
		return fmt.Errorf("write folder marker: %w", err)
	}
	if _, err := worktree.Add(".folder"); err != nil {
		return fmt.Errorf("git add folder marker: %w", err)
	}
	hash, err := worktree.Commit("Initialize folder history", &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return fmt.Errorf("commit folder marker: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

func (s *Service) CommitNote(folderID, noteID string, content NoteContent, author, message string) (store.CommitInfo, error) {
	lock := s.folderLock(folderID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(folderID))
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("marshal note content: %w", err)
	}

	fileName := noteFile(noteID)
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), fileName), append(payload, '\n'), 0o644); err != nil {
		return store.CommitInfo{}, fmt.Errorf("write %s: %w", fileName, err)
	}
	if _, err := worktree.Add(fileName); err != nil {
		return store.CommitInfo{}, fmt.Errorf("git add note: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("commit note: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

func (s *Service) RemoveNote(folderID, noteID, author string) error {
	lock := s.folderLock(folderID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(folderID))
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	fileName := noteFile(noteID)
	if _, err := worktree.Remove(fileName); err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, index.ErrEntryNotFound) {
			return nil
		}
		return fmt.Errorf("git rm note: %w", err)
	}
	if _, err := worktree.Commit("Remove "+fileName, &git.CommitOptions{
		Author: signature(author),
	}); err != nil {
		return fmt.Errorf("commit note removal: %w", err)
	}
	return nil
}

func (s *Service) NoteHistory(folderID, noteID string, limit int) ([]store.CommitInfo, error) {
	lock := s.folderLock(folderID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(folderID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main branch: %w", err)
	}

	fileName := noteFile(noteID)
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash(), FileName: &fileName})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) NoteAtCommit(folderID, noteID, hash string) (NoteContent, error) {
	lock := s.folderLock(folderID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(folderID))
	if err != nil {
		return NoteContent{}, fmt.Errorf("open repo: %w", err)
	}

	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return NoteContent{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return NoteContent{}, fmt.Errorf("read commit %s: %w", hash, err)
	}

	file, err := commitObj.File(noteFile(noteID))
	if err != nil {
		return NoteContent{}, fmt.Errorf("load %s from commit: %w", noteFile(noteID), err)
	}
	reader, err := file.Reader()
	if err != nil {
		return NoteContent{}, fmt.Errorf("open note reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return NoteContent{}, fmt.Errorf("read note bytes: %w", err)
	}

	var content NoteContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return NoteContent{}, fmt.Errorf("decode note content: %w", err)
	}
	return content, nil
}

func (s *Service) RemoveFolderRepo(folderID string) error {
	lock := s.folderLock(folderID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(s.repoPath(folderID)); err != nil {
		return fmt.Errorf("remove folder repo: %w", err)
	}
	return nil
}

func (s *Service) repoPath(folderID string) string {
	return filepath.Join(s.baseDir, folderID)
}

func (s *Service) folderLock(folderID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[folderID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[folderID] = lock
	return lock
}

func noteFile(noteID string) string {
	return noteID + ".json"
}

func signature(author string) *object.Signature {
	if author == "" {
		author = "notelab"
	}
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@local.notelab.dev", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func sanitizeEmail(input string) string {
	runes := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			runes = append(runes, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			runes = append(runes, '.')
		}
	}
	if len(runes) == 0 {
		return "user"
	}
	return string(runes)
}

func toCommitInfo(commitObj *object.Commit) store.CommitInfo {
	return store.CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
