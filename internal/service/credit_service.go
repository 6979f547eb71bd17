// internal/service/credit_service.go
package service

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	creditv1 "github.com/clubmaster/clubmaster/api/proto/credit/v1/generated"
	ent "github.com/clubmaster/clubmaster/ent/generated"
	"github.com/clubmaster/clubmaster/ent/generated/progressrecord"
	"github.com/clubmaster/clubmaster/internal/middleware"
	"github.com/clubmaster/clubmaster/internal/repository"
)

type CreditService struct {
	creditv1.UnimplementedCreditServiceServer
	client *ent.Client
	rollup *repository.RollupRepository
	ledger *LedgerUpdater
	engine *CreditEngine
}

func NewCreditService(
	client *ent.Client,
	rollup *repository.RollupRepository,
	ledger *LedgerUpdater,
	engine *CreditEngine,
) *CreditService {
	return &CreditService{
		client: client,
		rollup: rollup,
		ledger: ledger,
		engine: engine,
	}
}

// GetUserCredits returns a member's stored running total, the total
// derived by replaying progress records, and the records themselves.
func (s *CreditService) GetUserCredits(ctx context.Context, req *creditv1.GetUserCreditsRequest) (*creditv1.GetUserCreditsResponse, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	userID := caller
	if req.UserId != "" {
		userID, err = uuid.Parse(req.UserId)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "invalid user ID format")
		}
	}

	user, err := s.client.User.Get(ctx, userID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "user not found")
		}
		return nil, status.Errorf(codes.Internal, "failed to get user: %v", err)
	}

	derived, err := s.rollup.DerivedUserTotal(ctx, userID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to derive credit total: %v", err)
	}

	performance, err := s.rollup.UserPastPerformance(ctx, userID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to summarize history: %v", err)
	}

	records, err := s.client.ProgressRecord.
		Query().
		Where(progressrecord.UserIDEQ(userID)).
		Order(ent.Desc(progressrecord.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to list progress records: %v", err)
	}

	protoRecords := make([]*creditv1.ProgressRecord, len(records))
	for i, record := range records {
		protoRecords[i] = convertProgressRecordToProto(record)
	}

	resp := &creditv1.GetUserCreditsResponse{
		UserId:       userID.String(),
		TotalCredits: int32(user.TotalCredits),
		DerivedTotal: int32(derived),
		Records:      protoRecords,
	}
	if performance != nil {
		resp.CompletedTasks = int32(performance.CompletedTasks)
		resp.AvgCredits = performance.AvgCredits
	}
	return resp, nil
}

// GetClubRollup aggregates earned credits per member for one club.
func (s *CreditService) GetClubRollup(ctx context.Context, req *creditv1.GetClubRollupRequest) (*creditv1.GetClubRollupResponse, error) {
	if req.ClubId == "" {
		return nil, status.Error(codes.InvalidArgument, "club_id is required")
	}
	clubID, err := uuid.Parse(req.ClubId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid club ID format")
	}

	rollup, err := s.rollup.ClubRollup(ctx, clubID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to roll up club credits: %v", err)
	}

	members := make([]*creditv1.ClubMemberCredits, len(rollup.Members))
	for i, m := range rollup.Members {
		members[i] = &creditv1.ClubMemberCredits{
			UserId:         m.UserID.String(),
			Username:       m.Username,
			TotalCredits:   int32(m.TotalCredits),
			CompletedTasks: int32(m.CompletedTasks),
		}
	}

	return &creditv1.GetClubRollupResponse{
		ClubId:         clubID.String(),
		TotalCredits:   int32(rollup.TotalCredits),
		CompletedTasks: int32(rollup.CompletedTasks),
		Members:        members,
	}, nil
}

// AttachFeedback lets a lead or admin attach review feedback to a
// completed submission. Feedback never changes the credit award.
func (s *CreditService) AttachFeedback(ctx context.Context, req *creditv1.AttachFeedbackRequest) (*creditv1.AttachFeedbackResponse, error) {
	giverID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	role, _ := middleware.GetUserRoleFromContext(ctx)
	if role != "lead" && role != "admin" {
		return nil, status.Error(codes.PermissionDenied, "only club leads may give feedback")
	}

	if req.RecordId == "" {
		return nil, status.Error(codes.InvalidArgument, "record_id is required")
	}
	recordID, err := uuid.Parse(req.RecordId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid record ID format")
	}

	record, err := s.ledger.AttachFeedback(ctx, recordID, giverID, req.Content, s.engine.now())
	if err != nil {
		return nil, err
	}

	return &creditv1.AttachFeedbackResponse{
		Record: convertProgressRecordToProto(record),
	}, nil
}
