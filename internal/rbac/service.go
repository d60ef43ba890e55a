// Package rbac implements the RBAC Service: client persistence (one TOML
// file per client), group/scope authorization, and the couicctl/admin
// bootstrap client.
// Built on common.Client/common.Group/common.Scope.
package rbac

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/r3dlight/couic/common"
	"github.com/r3dlight/couic/internal/logging"
	"github.com/r3dlight/couic/internal/security"
)

// Service persists and authorizes clients.
type Service struct {
	dir        string
	owner      string
	group      string
	logger     *logging.Logger
	mtx        sync.RWMutex
	byToken    map[uuid.UUID]common.Client
	byName     map[common.ClientName]common.Client
}

// New enumerates dir for client TOML files, validating each file's
// ownership/mode (mode 0600, owned by owner:group), parsing it, and
// failing on duplicate tokens; if no file has stem "couicctl" a fresh
// admin client is minted and written atomically.
func New(dir, owner, group string, lgr *logging.Logger) (*Service, error) {
	s := &Service{
		dir: dir, owner: owner, group: group, logger: lgr,
		byToken: make(map[uuid.UUID]common.Client),
		byName:  make(map[common.ClientName]common.Client),
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	if _, ok := s.byName[common.DefaultAdminClientName]; !ok {
		if err := s.bootstrapAdmin(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Service) loadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading clients dir %s: %w", s.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := security.CheckOwnerGroupPerms(path, s.owner, s.group, security.FileMode); err != nil {
			return fmt.Errorf("client file %s: %w", path, err)
		}
		var cf common.ClientFile
		if _, err := toml.DecodeFile(path, &cf); err != nil {
			return fmt.Errorf("parsing client file %s: %w", path, err)
		}
		name := common.ClientName(strings.TrimSuffix(e.Name(), ".toml"))
		token, err := uuid.Parse(cf.Token)
		if err != nil {
			return fmt.Errorf("client file %s: invalid token: %w", path, err)
		}
		group, err := common.ParseGroup(cf.Group)
		if err != nil {
			return fmt.Errorf("client file %s: %w", path, err)
		}
		if _, dup := s.byToken[token]; dup {
			return fmt.Errorf("duplicate token across client files (last: %s)", path)
		}
		client := common.Client{Name: name, Token: token, Group: group}
		s.byToken[token] = client
		s.byName[name] = client
	}
	return nil
}

func (s *Service) bootstrapAdmin() error {
	client := common.Client{
		Name:  common.DefaultAdminClientName,
		Token: uuid.New(),
		Group: common.GroupAdmin,
	}
	if err := s.writeClientFile(client); err != nil {
		return err
	}
	s.byToken[client.Token] = client
	s.byName[client.Name] = client
	if s.logger != nil {
		s.logger.Info("bootstrapped default admin client", logging.KV("name", string(client.Name)))
	}
	return nil
}

func (s *Service) writeClientFile(c common.Client) error {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(c.ToFile()); err != nil {
		return err
	}
	path := filepath.Join(s.dir, string(c.Name)+".toml")
	return security.WriteAtomic(path, []byte(buf.String()), s.owner, s.group, security.FileMode)
}

// ListClients returns every known client.
func (s *Service) ListClients() []common.Client {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	out := make([]common.Client, 0, len(s.byName))
	for _, c := range s.byName {
		out = append(out, c)
	}
	return out
}

func (s *Service) GetClientByName(name common.ClientName) (common.Client, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	c, ok := s.byName[name]
	return c, ok
}

// CheckAuthorization reports whether token authorizes scope: any of the
// client's group's default scopes must match (common.Scope.Matches).
func (s *Service) CheckAuthorization(token uuid.UUID, scope common.Scope) (common.Client, bool) {
	s.mtx.RLock()
	client, ok := s.byToken[token]
	s.mtx.RUnlock()
	if !ok {
		return common.Client{}, false
	}
	for _, granted := range common.DefaultScopes(client.Group) {
		if granted.Matches(scope) {
			return client, true
		}
	}
	return common.Client{}, false
}

// AddClient rejects a duplicate name, writes the file first (atomic),
// then inserts into memory.
func (s *Service) AddClient(name common.ClientName, group common.Group) (common.Client, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, dup := s.byName[name]; dup {
		return common.Client{}, common.Conflict("client already exists")
	}
	client := common.Client{Name: name, Token: uuid.New(), Group: group}
	if err := s.writeClientFile(client); err != nil {
		return common.Client{}, common.Internal(err.Error())
	}
	s.byName[name] = client
	s.byToken[client.Token] = client
	if s.logger != nil {
		s.logger.Info("rbac client created", logging.KV("name", string(name)), logging.KV("group", group.String()))
	}
	return client, nil
}

// DeleteClientByName refuses to delete the reserved default name, then
// removes the file, then removes the in-memory entry.
func (s *Service) DeleteClientByName(name common.ClientName) error {
	if name == common.DefaultAdminClientName {
		return common.Invalid("cannot delete the default admin client")
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	client, ok := s.byName[name]
	if !ok {
		return common.NotFound("client not found")
	}
	path := filepath.Join(s.dir, string(name)+".toml")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return common.Internal(err.Error())
	}
	delete(s.byName, name)
	delete(s.byToken, client.Token)
	if s.logger != nil {
		s.logger.Info("rbac client deleted", logging.KV("name", string(name)))
	}
	return nil
}
