package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ryanmcguirecode/batchdesk/internal/api"
	"github.com/ryanmcguirecode/batchdesk/internal/svcctx"
	"github.com/ryanmcguirecode/batchdesk/internal/types"
)

// ListBatchesResponse wraps the batch list.
type ListBatchesResponse struct {
	Batches []*types.Batch `json:"batches"`
}

// ListBatchesEndpoint handles GET /api/batches?organization=X.
type ListBatchesEndpoint struct{}

func (e *ListBatchesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/batches", e.handler
}

func (e *ListBatchesEndpoint) RequiresInit() bool { return true }

func (e *ListBatchesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	organization := r.URL.Query().Get("organization")
	if organization == "" {
		writeError(w, http.StatusBadRequest, "organization query parameter is required")
		return
	}

	ctx := r.Context()
	batches, err := svcctx.StoreFrom(ctx).ListBatches(ctx, organization)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if batches == nil {
		batches = []*types.Batch{}
	}

	writeJSON(w, http.StatusOK, ListBatchesResponse{Batches: batches})
}

func (e *ListBatchesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var organization string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List batches for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListBatchesResponse
			if err := client.Get(cmd.Context(), "/api/batches?organization="+organization, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&organization, "org", "", "Organization (required)")
	cmd.MarkFlagRequired("org")
	return cmd
}

// GetBatchEndpoint handles GET /api/batches/{id}.
type GetBatchEndpoint struct{}

func (e *GetBatchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/batches/{id}", e.handler
}

func (e *GetBatchEndpoint) RequiresInit() bool { return true }

func (e *GetBatchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	b, err := svcctx.StoreFrom(ctx).GetBatch(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, statusForError(err, http.StatusForbidden), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (e *GetBatchEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <batch-id>",
		Short: "Get a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var b types.Batch
			if err := client.Get(cmd.Context(), "/api/batches/"+args[0], &b); err != nil {
				return err
			}
			return api.Output(b)
		},
	}
}
