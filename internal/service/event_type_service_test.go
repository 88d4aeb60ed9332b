package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eventreg-data/internal/domain"
)

func TestDeleteEventType_BlockedWhileReferenced(t *testing.T) {
	repos := newMemoryRepos()
	etSvc := NewEventTypeService(repos.et, zap.NewNop())
	accSvc := NewAccommodationService(repos.acc, nil, nil, zap.NewNop())
	ctx := context.Background()

	etResp, err := etSvc.CreateEventType(ctx, CreateEventTypeRequest{Name: "青年特会", IsActive: true})
	require.NoError(t, err)

	roomResp, err := accSvc.CreateRoom(ctx, CreateRoomRequest{
		RoomName:     "101",
		BedCount:     2,
		MaxOccupancy: 2,
		IsActive:     true,
		EventTypeID:  etResp.EventTypeID,
	})
	require.NoError(t, err)

	// 被房间引用时不允许删除
	_, err = etSvc.DeleteEventType(ctx, DeleteEventTypeRequest{EventTypeID: etResp.EventTypeID})
	require.ErrorIs(t, err, domain.ErrEventTypeInUse)

	_, err = accSvc.DeleteRoom(ctx, DeleteRoomRequest{RoomID: roomResp.RoomID})
	require.NoError(t, err)
	_, err = etSvc.DeleteEventType(ctx, DeleteEventTypeRequest{EventTypeID: etResp.EventTypeID})
	require.NoError(t, err)

	_, err = etSvc.GetEventType(ctx, GetEventTypeRequest{EventTypeID: etResp.EventTypeID})
	require.ErrorIs(t, err, domain.ErrEventTypeNotFound)
}

func TestListEventTypes_ActiveFilter(t *testing.T) {
	repos := newMemoryRepos()
	etSvc := NewEventTypeService(repos.et, zap.NewNop())
	ctx := context.Background()

	_, err := etSvc.CreateEventType(ctx, CreateEventTypeRequest{Name: "相调", IsActive: true})
	require.NoError(t, err)
	_, err = etSvc.CreateEventType(ctx, CreateEventTypeRequest{Name: "旧特会", IsActive: false})
	require.NoError(t, err)

	resp, err := etSvc.ListEventTypes(ctx, ListEventTypesRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)

	resp, err = etSvc.ListEventTypes(ctx, ListEventTypesRequest{IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
}
