//go:build protogen

package schedule

import (
	"context"
	"time"

	"github.com/BenFidge/bookgrid/libs/grpcx"
	directoryv1 "github.com/BenFidge/bookgrid/protos/gen/directory/v1"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/availability"
)

type grpcProvider struct {
	client directoryv1.DirectoryServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, 3*time.Second)
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: directoryv1.NewDirectoryServiceClient(conn)}, nil
}

func (p *grpcProvider) DaySchedules(ctx context.Context, portalID string, resourceIDs []int64, date string) (map[int64]DaySchedule, error) {
	resp, err := p.client.GetDaySchedules(ctx, &directoryv1.DaySchedulesRequest{
		PortalId:    portalID,
		ResourceIds: resourceIDs,
		Date:        date,
	})
	if err != nil {
		return nil, err
	}

	out := make(map[int64]DaySchedule, len(resp.GetSchedules()))
	for _, s := range resp.GetSchedules() {
		ds := DaySchedule{
			Window: availability.Span{Start: int(s.GetStartMinute()), End: int(s.GetEndMinute())},
			Closed: s.GetClosed(),
		}
		for _, b := range s.GetBlocked() {
			span := availability.Span{Start: int(b.GetStartMinute()), End: int(b.GetEndMinute())}
			if span.Valid() {
				ds.Blocked = append(ds.Blocked, span)
			}
		}
		out[s.GetResourceId()] = ds
	}
	return out, nil
}
