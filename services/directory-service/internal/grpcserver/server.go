//go:build protogen

package grpcserver

import (
	"context"
	"time"

	directoryv1 "github.com/BenFidge/bookgrid/protos/gen/directory/v1"
	"github.com/BenFidge/bookgrid/services/directory-service/internal/storage"
	"google.golang.org/grpc"
)

type server struct {
	directoryv1.UnimplementedDirectoryServiceServer
	repo *storage.Repository
}

func Register(grpcServer *grpc.Server, repo *storage.Repository) {
	directoryv1.RegisterDirectoryServiceServer(grpcServer, &server{repo: repo})
}

// GetDaySchedules returns working windows and blocked minutes for the
// requested resources on one UTC day. Resources the directory does not
// know are omitted so the caller can apply its own defaults.
func (s *server) GetDaySchedules(ctx context.Context, req *directoryv1.DaySchedulesRequest) (*directoryv1.DaySchedulesResponse, error) {
	resp := &directoryv1.DaySchedulesResponse{
		PortalId: req.GetPortalId(),
		Date:     req.GetDate(),
	}
	if req.GetPortalId() == "" || len(req.GetResourceIds()) == 0 {
		return resp, nil
	}
	day, err := time.ParseInLocation("2006-01-02", req.GetDate(), time.UTC)
	if err != nil {
		return resp, nil
	}

	schedules, err := s.repo.DaySchedules(ctx, req.GetPortalId(), req.GetResourceIds(), day)
	if err != nil {
		return nil, err
	}

	for _, id := range req.GetResourceIds() {
		sched, ok := schedules[id]
		if !ok {
			continue
		}
		item := &directoryv1.ResourceDaySchedule{
			ResourceId:  id,
			Closed:      !sched.IsOpen,
			StartMinute: int32(sched.StartMinute),
			EndMinute:   int32(sched.EndMinute),
		}
		for _, b := range sched.Blocked {
			item.Blocked = append(item.Blocked, &directoryv1.BlockedSpan{
				StartMinute: int32(b.StartMinute),
				EndMinute:   int32(b.EndMinute),
			})
		}
		resp.Schedules = append(resp.Schedules, item)
	}
	return resp, nil
}
