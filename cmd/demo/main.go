// Command demo is a minimal wiring of govcore behind an HTTP surface:
// config load, DB connect, schema init, a couple of routes, graceful
// shutdown. It exists to show the core wired end to end; a production
// deployment brings its own HTTP layer and auth filter.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/civictech/grievance-core/domain"
	"github.com/civictech/grievance-core/govcore"
	"github.com/civictech/grievance-core/internal/config"
	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()

	core, err := govcore.Open(cfg)
	if err != nil {
		log.Fatalf("failed to start governance core: %v", err)
	}
	core.Start()

	router := mux.NewRouter()
	router.HandleFunc("/complaints/{id}/transition", transitionHandler(core)).Methods(http.MethodPost)
	router.HandleFunc("/escalations/trigger", triggerEscalationHandler(core)).Methods(http.MethodPost)
	router.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)

	srv := &http.Server{Addr: ":8080", Handler: router}

	go func() {
		log.Println("demo server listening on :8080")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = core.Stop()
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type transitionRequest struct {
	TargetStatus string `json:"target_status"`
	Reason       string `json:"reason"`
	CallerRole   string `json:"caller_role"`
	CallerUserID int64  `json:"caller_user_id"`
}

func transitionHandler(core *govcore.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := mux.Vars(r)["id"]
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid complaint id", http.StatusBadRequest)
			return
		}

		var req transitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		caller := domain.CallerContext{
			UserID: sql.NullInt64{Int64: req.CallerUserID, Valid: req.CallerUserID != 0},
			Role:   domain.Role(req.CallerRole),
		}

		result, err := core.Transition(r.Context(), id, domain.Status(req.TargetStatus), caller, req.Reason)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}

func triggerEscalationHandler(core *govcore.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := core.TriggerEscalationNow(r.Context(), domain.CallerContext{Role: domain.RoleAdmin,
			UserID: sql.NullInt64{Int64: 1, Valid: true}})
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"escalations": count})
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch err.(type) {
	case *domain.NotFoundError:
		http.Error(w, err.Error(), http.StatusNotFound)
	case *domain.UnauthorizedError, *domain.OwnershipViolationError, *domain.DepartmentMismatchError:
		http.Error(w, err.Error(), http.StatusForbidden)
	case *domain.InvalidTransitionError, *domain.ResolutionProofRequiredError,
		*domain.SignoffRequiredError, *domain.InvalidDisputeStateError, *domain.DuplicateDisputeError:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
