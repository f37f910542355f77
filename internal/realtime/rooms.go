package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync-client/internal/model"
)

// Room is a push channel address: a project room or a user's personal room.
type Room struct {
	Name       string
	ID         int64
	joinEvent  string
	leaveEvent string
}

func ProjectRoom(projectID int64) Room {
	return Room{
		Name:       fmt.Sprintf("project_%d", projectID),
		ID:         projectID,
		joinEvent:  model.EventJoinProject,
		leaveEvent: model.EventLeaveProject,
	}
}

func UserRoom(userID int64) Room {
	return Room{
		Name:       fmt.Sprintf("user_%d", userID),
		ID:         userID,
		joinEvent:  model.EventJoinUserRoom,
		leaveEvent: model.EventLeaveUserRoom,
	}
}

// RoomFor is the room carrying events for scope; personal scope needs the user id.
func RoomFor(scope model.Scope, userID int64) Room {
	if id, ok := scope.ProjectID(); ok {
		return ProjectRoom(id)
	}
	return UserRoom(userID)
}

func (m *Manager) JoinProject(ctx context.Context, projectID int64) error {
	return m.Join(ctx, ProjectRoom(projectID))
}

func (m *Manager) LeaveProject(ctx context.Context, projectID int64) error {
	return m.Leave(ctx, ProjectRoom(projectID))
}

func (m *Manager) JoinUserRoom(ctx context.Context, userID int64) error {
	return m.Join(ctx, UserRoom(userID))
}

func (m *Manager) LeaveUserRoom(ctx context.Context, userID int64) error {
	return m.Leave(ctx, UserRoom(userID))
}

// Join waits for the connection, then joins r. The room is remembered and
// rejoined after a reconnect.
func (m *Manager) Join(ctx context.Context, r Room) error {
	if err := m.Connect(ctx); err != nil {
		return fmt.Errorf("join %s: %w", r.Name, err)
	}
	if err := m.Emit(ctx, r.joinEvent, r.ID); err != nil {
		return fmt.Errorf("join %s: %w", r.Name, err)
	}

	m.mu.Lock()
	m.rooms[r.Name] = r
	m.mu.Unlock()

	m.logger.Info("room joined", zap.String("room", r.Name))
	return nil
}

// Leave forgets r and tells the server when the connection is open. With no
// connection there is no server-side membership to drop.
func (m *Manager) Leave(ctx context.Context, r Room) error {
	m.mu.Lock()
	delete(m.rooms, r.Name)
	m.mu.Unlock()

	if err := m.Emit(ctx, r.leaveEvent, r.ID); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return nil
		}
		return fmt.Errorf("leave %s: %w", r.Name, err)
	}
	m.logger.Info("room left", zap.String("room", r.Name))
	return nil
}

// Rooms lists the names of joined rooms, sorted.
func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.rooms))
	for name := range m.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
