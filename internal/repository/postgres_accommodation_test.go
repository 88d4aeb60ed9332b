//go:build integration
// +build integration

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"eventreg-data/internal/config"
	"eventreg-data/internal/database"
	"eventreg-data/internal/domain"
)

// setupTestDB 设置测试数据库
func setupTestDB(t *testing.T) *sql.DB {
	cfg := config.Load()
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		t.Skipf("Skipping integration test: database not available: %v", err)
	}
	return db
}

func createTestRegistrationRow(t *testing.T, db *sql.DB, name string) string {
	t.Helper()
	var id string
	err := db.QueryRow(
		`INSERT INTO registrations (name, gender) VALUES ($1, 'male') RETURNING registration_id`,
		name,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func cleanupRoom(t *testing.T, db *sql.DB, roomID string) {
	t.Helper()
	_, _ = db.Exec(`DELETE FROM assignments WHERE room_id = $1`, roomID)
	_, _ = db.Exec(`DELETE FROM rooms WHERE room_id = $1`, roomID)
}

func TestPostgresCreateAssignment_Transactional(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewPostgresAccommodationRepository(db)
	ctx := context.Background()

	roomID, err := repo.CreateRoom(ctx, &domain.Room{
		RoomName:     "it-room-tx",
		BedCount:     2,
		MaxOccupancy: 2,
		IsActive:     true,
	})
	require.NoError(t, err)
	defer cleanupRoom(t, db, roomID)

	regA := createTestRegistrationRow(t, db, "it-reg-a")
	regB := createTestRegistrationRow(t, db, "it-reg-b")
	defer func() {
		_, _ = db.Exec(`DELETE FROM registrations WHERE registration_id IN ($1, $2)`, regA, regB)
	}()

	_, err = repo.CreateAssignment(ctx, &domain.Assignment{RoomID: roomID, RegistrationID: regA})
	require.NoError(t, err)

	// 同一报名者重复分配
	_, err = repo.CreateAssignment(ctx, &domain.Assignment{RoomID: roomID, RegistrationID: regA})
	require.ErrorIs(t, err, domain.ErrAlreadyAssigned)

	_, err = repo.CreateAssignment(ctx, &domain.Assignment{RoomID: roomID, RegistrationID: regB})
	require.NoError(t, err)

	// 计数与分配行数一致
	room, err := repo.GetRoom(ctx, roomID)
	require.NoError(t, err)
	require.Equal(t, 2, room.CurrentOccupancy)
}

func TestPostgresCreateAssignment_ConcurrentCapacity(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewPostgresAccommodationRepository(db)
	ctx := context.Background()

	const maxOccupancy = 3
	const attempts = 12

	roomID, err := repo.CreateRoom(ctx, &domain.Room{
		RoomName:     "it-room-concurrent",
		BedCount:     maxOccupancy,
		MaxOccupancy: maxOccupancy,
		IsActive:     true,
	})
	require.NoError(t, err)
	defer cleanupRoom(t, db, roomID)

	regIDs := make([]string, attempts)
	for i := range regIDs {
		regIDs[i] = createTestRegistrationRow(t, db, fmt.Sprintf("it-reg-c-%d", i))
	}
	defer func() {
		for _, id := range regIDs {
			_, _ = db.Exec(`DELETE FROM registrations WHERE registration_id = $1`, id)
		}
	}()

	// FOR UPDATE 行锁下并发分配不会超过 max_occupancy
	var wg sync.WaitGroup
	errCh := make(chan error, attempts)
	for _, regID := range regIDs {
		wg.Add(1)
		go func(reg string) {
			defer wg.Done()
			_, err := repo.CreateAssignment(ctx, &domain.Assignment{RoomID: roomID, RegistrationID: reg})
			errCh <- err
		}(regID)
	}
	wg.Wait()
	close(errCh)

	succeeded := 0
	for err := range errCh {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, domain.ErrRoomAtCapacity)
		}
	}
	require.Equal(t, maxOccupancy, succeeded)

	room, err := repo.GetRoom(ctx, roomID)
	require.NoError(t, err)
	require.Equal(t, maxOccupancy, room.CurrentOccupancy)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM assignments WHERE room_id = $1`, roomID).Scan(&count))
	require.Equal(t, maxOccupancy, count)
}

func TestPostgresRemoveAssignment_DecrementsCounter(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewPostgresAccommodationRepository(db)
	ctx := context.Background()

	roomID, err := repo.CreateRoom(ctx, &domain.Room{
		RoomName:     "it-room-remove",
		BedCount:     1,
		MaxOccupancy: 1,
		IsActive:     true,
	})
	require.NoError(t, err)
	defer cleanupRoom(t, db, roomID)

	regID := createTestRegistrationRow(t, db, "it-reg-remove")
	defer func() {
		_, _ = db.Exec(`DELETE FROM registrations WHERE registration_id = $1`, regID)
	}()

	assignmentID, err := repo.CreateAssignment(ctx, &domain.Assignment{RoomID: roomID, RegistrationID: regID})
	require.NoError(t, err)

	require.NoError(t, repo.RemoveAssignment(ctx, assignmentID))

	room, err := repo.GetRoom(ctx, roomID)
	require.NoError(t, err)
	require.Equal(t, 0, room.CurrentOccupancy)

	require.ErrorIs(t, repo.RemoveAssignment(ctx, assignmentID), domain.ErrAssignmentNotFound)
}
