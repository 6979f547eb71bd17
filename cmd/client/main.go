// cmd/client/main.go
//
// Demo client that walks the full task credit flow against a local
// server: create a task as the lead, submit it as the member, then read
// back the award and the club rollup. Tokens are minted locally with
// the dev secret, which only works against a development server.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/timestamppb"

	creditv1 "github.com/clubmaster/clubmaster/api/proto/credit/v1/generated"
	taskv1 "github.com/clubmaster/clubmaster/api/proto/task/v1/generated"
	"github.com/clubmaster/clubmaster/pkg/auth"
)

const (
	serverAddr = "localhost:50051"
	devSecret  = "dev-secret-change-in-production"
	devIssuer  = "clubmaster-identity"
)

func main() {
	fmt.Println("🚀 ClubMaster Task Credit Demo Client")

	conn, err := grpc.NewClient(serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	taskClient := taskv1.NewTaskServiceClient(conn)
	creditClient := creditv1.NewCreditServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Identities the demo acts as. The referenced club and users must
	// already exist; see the seed instructions in the README.
	leadID := mustEnvUUID("DEMO_LEAD_ID")
	memberID := mustEnvUUID("DEMO_MEMBER_ID")
	clubID := mustEnvUUID("DEMO_CLUB_ID")

	verifier := auth.NewTokenVerifier(devSecret, devIssuer)
	leadCtx := authed(ctx, verifier, leadID, "lead")
	memberCtx := authed(ctx, verifier, memberID, "member")

	// 1. Lead creates a task due in two days.
	created, err := taskClient.CreateTask(leadCtx, &taskv1.CreateTaskRequest{
		Title:           "Prepare robotics demo",
		Description:     "Assemble and test the demo rig before the open house.",
		ClubId:          clubID.String(),
		AssigneeId:      memberID.String(),
		Priority:        taskv1.Priority_PRIORITY_HIGH,
		Difficulty:      6,
		ExpectedMinutes: 180,
		DueDate:         timestamppb.New(time.Now().Add(48 * time.Hour)),
		Tags:            []string{"demo", "hardware"},
	})
	if err != nil {
		log.Fatalf("CreateTask failed: %v", err)
	}
	fmt.Printf("✅ Created task %s\n", created.Task.Id)

	// 2. Member submits the completed work.
	submitted, err := taskClient.SubmitTask(memberCtx, &taskv1.SubmitTaskRequest{
		Id:                created.Task.Id,
		Description:       "Rig assembled, all subsystems tested twice.",
		CompletionMinutes: 150,
		Attachments:       []string{"https://club.dev/photos/rig.jpg"},
	})
	if err != nil {
		log.Fatalf("SubmitTask failed: %v", err)
	}
	fmt.Printf("✅ Submitted: %d credits (%s)\n",
		submitted.Breakdown.TotalCredits, submitted.Breakdown.Explanation)

	// 3. Member reads their ledger.
	credits, err := creditClient.GetUserCredits(memberCtx, &creditv1.GetUserCreditsRequest{})
	if err != nil {
		log.Fatalf("GetUserCredits failed: %v", err)
	}
	fmt.Printf("💰 Member total: %d (derived %d) over %d task(s)\n",
		credits.TotalCredits, credits.DerivedTotal, credits.CompletedTasks)

	// 4. Lead checks the club leaderboard.
	rollup, err := creditClient.GetClubRollup(leadCtx, &creditv1.GetClubRollupRequest{
		ClubId: clubID.String(),
	})
	if err != nil {
		log.Fatalf("GetClubRollup failed: %v", err)
	}
	fmt.Printf("🏆 Club total: %d credits over %d completion(s)\n",
		rollup.TotalCredits, rollup.CompletedTasks)
	for i, m := range rollup.Members {
		fmt.Printf("   %d. %s — %d credits\n", i+1, m.Username, m.TotalCredits)
	}
}

// authed attaches a freshly minted bearer token for the given identity.
func authed(ctx context.Context, verifier *auth.TokenVerifier, userID uuid.UUID, role string) context.Context {
	token, err := verifier.Issue(userID, role, time.Hour)
	if err != nil {
		log.Fatalf("Failed to mint token: %v", err)
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func mustEnvUUID(key string) uuid.UUID {
	raw := os.Getenv(key)
	if raw == "" {
		log.Fatalf("%s must be set to run the demo", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		log.Fatalf("%s is not a valid UUID: %v", key, err)
	}
	return id
}
