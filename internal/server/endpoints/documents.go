package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ryanmcguirecode/batchdesk/internal/api"
	"github.com/ryanmcguirecode/batchdesk/internal/orgs"
	"github.com/ryanmcguirecode/batchdesk/internal/svcctx"
	"github.com/ryanmcguirecode/batchdesk/internal/types"
)

// IngestRequest is the request body for ingesting an extracted document.
type IngestRequest struct {
	Organization string         `json:"organization"`
	Filename     string         `json:"filename"`
	Extracted    map[string]any `json:"extracted,omitempty"`
}

// IngestResponse returns the stored document's identifier.
type IngestResponse struct {
	ID string `json:"id"`
}

// IngestEndpoint handles POST /api/documents: it stores the document
// record the extraction pipeline produced, then assigns it to a batch.
type IngestEndpoint struct{}

func (e *IngestEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents", e.handler
}

func (e *IngestEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Ingest a document
//	@Description	Store an extracted document and assign it to a batch
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			request	body		IngestRequest	true	"Document to ingest"
//	@Success		201		{object}	IngestResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/documents [post]
func (e *IngestEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Organization == "" {
		writeError(w, http.StatusBadRequest, "organization is required")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	ctx := r.Context()
	if err := svcctx.OrgsFrom(ctx).ValidateFields(ctx, req.Organization, req.Extracted); err != nil {
		if errors.Is(err, orgs.ErrInvalidFields) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now().UTC()
	doc := &types.Document{
		ID:           uuid.NewString(),
		Organization: req.Organization,
		Filename:     req.Filename,
		Extracted:    req.Extracted,
		TimeCreated:  now,
		Updated:      now,
	}
	if err := svcctx.StoreFrom(ctx).CreateDocument(ctx, doc); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := svcctx.AssignerFrom(ctx).Assign(ctx, doc.ID, req.Organization); err != nil {
		// The document record exists but is not batched; the caller must
		// follow up rather than re-ingest.
		writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("document %s stored but not assigned: %v", doc.ID, err))
		return
	}

	writeJSON(w, http.StatusCreated, IngestResponse{ID: doc.ID})
}

func (e *IngestEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		organization  string
		filename      string
		extractedJSON string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest an extracted document",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := IngestRequest{Organization: organization, Filename: filename}
			if extractedJSON != "" {
				if err := json.Unmarshal([]byte(extractedJSON), &req.Extracted); err != nil {
					return fmt.Errorf("invalid --extracted JSON: %w", err)
				}
			}

			client := api.NewClient(getServerURL())
			var resp IngestResponse
			if err := client.Post(cmd.Context(), "/api/documents", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&organization, "org", "", "Organization (required)")
	cmd.Flags().StringVar(&filename, "filename", "", "Original filename (required)")
	cmd.Flags().StringVar(&extractedJSON, "extracted", "", "Machine-extracted field values as JSON")
	cmd.MarkFlagRequired("org")
	cmd.MarkFlagRequired("filename")
	return cmd
}

// GetDocumentEndpoint handles GET /api/documents/{id}.
type GetDocumentEndpoint struct{}

func (e *GetDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}", e.handler
}

func (e *GetDocumentEndpoint) RequiresInit() bool { return true }

func (e *GetDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := svcctx.StoreFrom(ctx).GetDocument(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, statusForError(err, http.StatusForbidden), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (e *GetDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <document-id>",
		Short: "Get a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var doc types.Document
			if err := client.Get(cmd.Context(), "/api/documents/"+args[0], &doc); err != nil {
				return err
			}
			return api.Output(doc)
		},
	}
}
