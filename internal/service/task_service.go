// internal/service/task_service.go
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"

	creditv1 "github.com/clubmaster/clubmaster/api/proto/credit/v1/generated"
	taskv1 "github.com/clubmaster/clubmaster/api/proto/task/v1/generated"
	ent "github.com/clubmaster/clubmaster/ent/generated"
	"github.com/clubmaster/clubmaster/ent/generated/task"
	"github.com/clubmaster/clubmaster/internal/middleware"
	"github.com/clubmaster/clubmaster/internal/repository"
	"github.com/clubmaster/clubmaster/pkg/credit"
)

type TaskService struct {
	taskv1.UnimplementedTaskServiceServer
	repo   *repository.EntTaskRepository
	engine *CreditEngine
}

func NewTaskService(repo *repository.EntTaskRepository, engine *CreditEngine) *TaskService {
	return &TaskService{
		repo:   repo,
		engine: engine,
	}
}

// CreateTask creates a new task assigned by the authenticated caller.
func (s *TaskService) CreateTask(ctx context.Context, req *taskv1.CreateTaskRequest) (*taskv1.CreateTaskResponse, error) {
	assignerID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	// Validate request
	if strings.TrimSpace(req.Title) == "" {
		return nil, status.Error(codes.InvalidArgument, "title is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, status.Error(codes.InvalidArgument, "description is required")
	}
	clubID, err := uuid.Parse(req.ClubId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid club ID format")
	}
	assigneeID, err := uuid.Parse(req.AssigneeId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid assignee ID format")
	}

	difficulty := int(req.Difficulty)
	if difficulty == 0 {
		difficulty = 5
	}
	if err := validateAssignment(assignerID, assigneeID, difficulty); err != nil {
		return nil, err
	}

	// Prepare input
	input := &repository.TaskInput{
		Title:           req.Title,
		Description:     req.Description,
		ClubID:          clubID,
		AssignerID:      assignerID,
		AssigneeID:      assigneeID,
		Priority:        convertPriorityToString(req.Priority),
		Difficulty:      difficulty,
		ExpectedMinutes: int(req.ExpectedMinutes),
		Tags:            req.Tags,
	}

	if req.DueDate != nil {
		dueDate := req.DueDate.AsTime()
		input.DueDate = &dueDate
	}

	// Create task
	task, err := s.repo.Create(ctx, input)
	if err != nil {
		if ent.IsConstraintError(err) {
			return nil, status.Error(codes.InvalidArgument, "club or assignee does not exist")
		}
		return nil, status.Errorf(codes.Internal, "failed to create task: %v", err)
	}

	return &taskv1.CreateTaskResponse{
		Task: convertEntTaskToProto(task),
	}, nil
}

// GetTask retrieves a task by ID
func (s *TaskService) GetTask(ctx context.Context, req *taskv1.GetTaskRequest) (*taskv1.GetTaskResponse, error) {
	if req.Id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	// Parse UUID
	id, err := uuid.Parse(req.Id)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid task ID format")
	}

	// Get task
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, errTaskNotFound
		}
		return nil, status.Errorf(codes.Internal, "failed to get task: %v", err)
	}

	return &taskv1.GetTaskResponse{
		Task: convertEntTaskToProto(task),
	}, nil
}

// ListTasks retrieves a filtered, paginated list of tasks
func (s *TaskService) ListTasks(ctx context.Context, req *taskv1.ListTasksRequest) (*taskv1.ListTasksResponse, error) {
	// Set default page size
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	// Build filter
	filter := repository.ListFilter{
		OnlyOverdue: req.OnlyOverdue,
		Search:      req.Search,
		SortBy:      req.SortBy,
		SortOrder:   req.SortOrder,
		Limit:       int(pageSize),
		Offset:      int(req.Offset),
	}

	if req.Status != taskv1.TaskStatus_TASK_STATUS_UNSPECIFIED {
		status := convertStatusToString(req.Status)
		filter.Status = &status
	}

	if req.Priority != taskv1.Priority_PRIORITY_UNSPECIFIED {
		priority := convertPriorityToString(req.Priority)
		filter.Priority = &priority
	}

	if req.ClubId != "" {
		clubID, err := uuid.Parse(req.ClubId)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "invalid club ID format")
		}
		filter.ClubID = &clubID
	}

	if req.AssigneeId != "" {
		assigneeID, err := uuid.Parse(req.AssigneeId)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "invalid assignee ID format")
		}
		filter.AssigneeID = &assigneeID
	}

	// Get tasks
	tasks, totalCount, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to list tasks: %v", err)
	}

	// Convert to proto
	protoTasks := make([]*taskv1.Task, len(tasks))
	for i, task := range tasks {
		protoTasks[i] = convertEntTaskToProto(task)
	}

	return &taskv1.ListTasksResponse{
		Tasks:      protoTasks,
		TotalCount: int32(totalCount),
	}, nil
}

// UpdateTask edits an open task. Only the assigner may edit, and a
// completed task is frozen together with its award.
func (s *TaskService) UpdateTask(ctx context.Context, req *taskv1.UpdateTaskRequest) (*taskv1.UpdateTaskResponse, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if req.Id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	id, err := uuid.Parse(req.Id)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid task ID format")
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, errTaskNotFound
		}
		return nil, status.Errorf(codes.Internal, "failed to get task: %v", err)
	}
	if existing.AssignerID != caller {
		return nil, status.Error(codes.PermissionDenied, "only the assigner may edit a task")
	}
	if existing.Status == task.StatusCompleted {
		return nil, errAlreadyCompleted
	}

	// Build update input
	input := &repository.TaskUpdateInput{}

	if req.Title != "" {
		input.Title = &req.Title
	}
	if req.Description != "" {
		input.Description = &req.Description
	}
	if req.Priority != taskv1.Priority_PRIORITY_UNSPECIFIED {
		priority := convertPriorityToString(req.Priority)
		input.Priority = &priority
	}
	if req.Difficulty != 0 {
		difficulty := int(req.Difficulty)
		if difficulty < 1 || difficulty > 10 {
			return nil, status.Error(codes.InvalidArgument, "difficulty must be between 1 and 10")
		}
		input.Difficulty = &difficulty
	}
	if req.ExpectedMinutes != 0 {
		expected := int(req.ExpectedMinutes)
		if expected < 1 {
			return nil, status.Error(codes.InvalidArgument, "expected minutes must be positive")
		}
		input.ExpectedMinutes = &expected
	}
	if req.AssigneeId != "" {
		assigneeID, err := uuid.Parse(req.AssigneeId)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "invalid assignee ID format")
		}
		if assigneeID == caller {
			return nil, errSelfAssignment
		}
		input.AssigneeID = &assigneeID
	}
	if req.DueDate != nil {
		dueDate := req.DueDate.AsTime()
		input.DueDate = &dueDate
	}
	if len(req.Tags) > 0 {
		input.Tags = req.Tags
	}

	// Update task
	updated, err := s.repo.Update(ctx, id, input)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, errTaskNotFound
		}
		return nil, status.Errorf(codes.Internal, "failed to update task: %v", err)
	}

	return &taskv1.UpdateTaskResponse{
		Task: convertEntTaskToProto(updated),
	}, nil
}

// DeleteTask removes an open task. Completed tasks stay forever; their
// progress record is the ledger.
func (s *TaskService) DeleteTask(ctx context.Context, req *taskv1.DeleteTaskRequest) (*emptypb.Empty, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if req.Id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	id, err := uuid.Parse(req.Id)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid task ID format")
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, errTaskNotFound
		}
		return nil, status.Errorf(codes.Internal, "failed to get task: %v", err)
	}
	if existing.AssignerID != caller {
		return nil, status.Error(codes.PermissionDenied, "only the assigner may delete a task")
	}
	if existing.Status == task.StatusCompleted {
		return nil, errAlreadyCompleted
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if ent.IsNotFound(err) {
			return nil, errTaskNotFound
		}
		return nil, status.Errorf(codes.Internal, "failed to delete task: %v", err)
	}

	return &emptypb.Empty{}, nil
}

// SubmitTask completes a task on behalf of the authenticated caller and
// awards credits for it.
func (s *TaskService) SubmitTask(ctx context.Context, req *taskv1.SubmitTaskRequest) (*taskv1.SubmitTaskResponse, error) {
	submitterID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if req.Id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	id, err := uuid.Parse(req.Id)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid task ID format")
	}

	result, err := s.engine.SubmitTask(ctx, id, submitterID, SubmitRequest{
		Description:       req.Description,
		CompletionMinutes: int(req.CompletionMinutes),
		Attachments:       req.Attachments,
	})
	if err != nil {
		return nil, err
	}

	return &taskv1.SubmitTaskResponse{
		Task:      convertEntTaskToProto(result.Task),
		Progress:  convertProgressRecordToProto(result.Progress),
		Breakdown: convertBreakdownToProto(result.Breakdown),
	}, nil
}

// Helper functions

func callerID(ctx context.Context) (uuid.UUID, error) {
	raw, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Error(codes.Unauthenticated, "invalid user identity")
	}
	return id, nil
}

func convertEntTaskToProto(task *ent.Task) *taskv1.Task {
	proto := &taskv1.Task{
		Id:                    task.ID.String(),
		Title:                 task.Title,
		Description:           task.Description,
		ClubId:                task.ClubID.String(),
		AssignerId:            task.AssignerID.String(),
		AssigneeId:            task.AssigneeID.String(),
		Status:                convertStringToStatus(string(task.Status)),
		Priority:              convertStringToPriority(string(task.Priority)),
		Difficulty:            int32(task.Difficulty),
		ExpectedMinutes:       int32(task.ExpectedMinutes),
		IsOverdue:             task.IsOverdue,
		SubmissionDescription: task.SubmissionDescription,
		SubmissionAttachments: task.SubmissionAttachments,
		Credits:               int32(task.Credits),
		Tags:                  task.Tags,
		CreatedAt:             timestamppb.New(task.CreatedAt),
		UpdatedAt:             timestamppb.New(task.UpdatedAt),
	}

	if task.DueDate != nil {
		proto.DueDate = timestamppb.New(*task.DueDate)
	}
	if task.SubmittedAt != nil {
		proto.SubmittedAt = timestamppb.New(*task.SubmittedAt)
	}

	return proto
}

func convertProgressRecordToProto(record *ent.ProgressRecord) *creditv1.ProgressRecord {
	proto := &creditv1.ProgressRecord{
		Id:            record.ID.String(),
		UserId:        record.UserID.String(),
		TaskId:        record.TaskID.String(),
		ClubId:        record.ClubID.String(),
		SubmittedAt:   timestamppb.New(record.SubmittedAt),
		CreditsEarned: int32(record.CreditsEarned),
		Breakdown: &creditv1.CreditBreakdown{
			TotalCredits:     int32(record.CreditsEarned),
			TimeFactor:       record.TimeFactor,
			DifficultyFactor: record.DifficultyFactor,
			QualityFactor:    record.QualityFactor,
			BonusCredits:     record.BonusCredits,
			LatePenalty:      record.LatePenalty,
			Explanation:      record.Explanation,
		},
		FeedbackContent: record.FeedbackContent,
		CreatedAt:       timestamppb.New(record.CreatedAt),
	}

	if record.CompletionMinutes != nil {
		proto.CompletionMinutes = int32(*record.CompletionMinutes)
	}
	if record.FeedbackBy != nil {
		proto.FeedbackBy = record.FeedbackBy.String()
	}
	if record.FeedbackAt != nil {
		proto.FeedbackAt = timestamppb.New(*record.FeedbackAt)
	}

	return proto
}

func convertBreakdownToProto(b credit.Breakdown) *creditv1.CreditBreakdown {
	return &creditv1.CreditBreakdown{
		TotalCredits:     int32(b.TotalCredits),
		TimeFactor:       b.TimeFactor,
		DifficultyFactor: b.DifficultyFactor,
		QualityFactor:    b.QualityFactor,
		BonusCredits:     b.BonusCredits,
		LatePenalty:      b.LatePenalty,
		Explanation:      b.Explanation,
	}
}

func convertStatusToString(status taskv1.TaskStatus) string {
	switch status {
	case taskv1.TaskStatus_TASK_STATUS_PENDING:
		return "pending"
	case taskv1.TaskStatus_TASK_STATUS_IN_PROGRESS:
		return "in_progress"
	case taskv1.TaskStatus_TASK_STATUS_COMPLETED:
		return "completed"
	default:
		return "pending"
	}
}

func convertStringToStatus(status string) taskv1.TaskStatus {
	switch status {
	case "pending":
		return taskv1.TaskStatus_TASK_STATUS_PENDING
	case "in_progress":
		return taskv1.TaskStatus_TASK_STATUS_IN_PROGRESS
	case "completed":
		return taskv1.TaskStatus_TASK_STATUS_COMPLETED
	default:
		return taskv1.TaskStatus_TASK_STATUS_UNSPECIFIED
	}
}

func convertPriorityToString(priority taskv1.Priority) string {
	switch priority {
	case taskv1.Priority_PRIORITY_LOW:
		return "low"
	case taskv1.Priority_PRIORITY_MEDIUM:
		return "medium"
	case taskv1.Priority_PRIORITY_HIGH:
		return "high"
	case taskv1.Priority_PRIORITY_URGENT:
		return "urgent"
	default:
		return "medium"
	}
}

func convertStringToPriority(priority string) taskv1.Priority {
	switch priority {
	case "low":
		return taskv1.Priority_PRIORITY_LOW
	case "medium":
		return taskv1.Priority_PRIORITY_MEDIUM
	case "high":
		return taskv1.Priority_PRIORITY_HIGH
	case "urgent":
		return taskv1.Priority_PRIORITY_URGENT
	default:
		return taskv1.Priority_PRIORITY_UNSPECIFIED
	}
}
