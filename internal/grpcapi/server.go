package grpcapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Masterminds/squirrel"

	"github.com/mcarvalho21/nova-sub000/internal/eventstore"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// tableFor mirrors httpapi's projection allow-list minus gl_postings (see
// pkColumnFor): only these projection types are reachable by name over the
// wire, never an unvalidated table name built from client input.
var tableFor = map[string]string{
	"vendor_list":       "vendor_list",
	"item_list":         "item_list",
	"po_list":           "po_list",
	"ap_invoice_list":   "ap_invoice_list",
	"ap_aging":          "ap_aging",
	"ap_vendor_balance": "ap_vendor_balance",
}

// pkColumnFor names the single-row lookup key per projection type.
// gl_postings has no natural single-row key (it's append-only lines) and
// is deliberately absent — GetProjectionRow rejects it.
var pkColumnFor = map[string]string{
	"vendor_list":       "vendor_id",
	"item_list":         "item_id",
	"po_list":           "po_id",
	"ap_invoice_list":   "invoice_id",
	"ap_aging":          "invoice_id",
	"ap_vendor_balance": "vendor_id",
}

// Server implements ProjectionQueryServer against the projection tables
// and the append-only event log, the read path other components reach
// over gRPC rather than direct table access.
type Server struct {
	DB     *platform.PostgresConnection
	Events *eventstore.Store
}

// GetProjectionRow looks up req["projection_type"]/req["row_id"] (scoped
// by req["legal_entity"] when present) and returns the row as a field
// map, or an empty struct when nothing matched.
func (s *Server) GetProjectionRow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	projectionType := fields["projection_type"].GetStringValue()
	rowID := fields["row_id"].GetStringValue()
	legalEntity := fields["legal_entity"].GetStringValue()

	table, ok := tableFor[projectionType]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown projection type %q", projectionType)
	}

	pkColumn, ok := pkColumnFor[projectionType]
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "projection type %q has no single-row key", projectionType)
	}

	if rowID == "" {
		return nil, status.Error(codes.InvalidArgument, "row_id is required")
	}

	db, err := s.DB.GetDB(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get database connection: %v", err)
	}

	builder := squirrel.Select("*").From(table).Where(squirrel.Eq{pkColumn: rowID}).PlaceholderFormat(squirrel.Dollar)
	if legalEntity != "" {
		builder = builder.Where(squirrel.Eq{"legal_entity": legalEntity})
	}

	query, args, err := builder.Limit(1).ToSql()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build projection query: %v", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query projection row: %v", err)
	}
	defer rows.Close()

	results, err := platform.ScanRowsToMaps(rows)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "scan projection row: %v", err)
	}

	if len(results) == 0 {
		return &structpb.Struct{}, nil
	}

	out, err := structpb.NewStruct(results[0])
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal projection row: %v", err)
	}

	return out, nil
}

// StreamEvents streams the event log from req["after_sequence"], paging
// req["limit"] events at a time until the stream is exhausted, each event
// JSON-round-tripped into a field map.
func (s *Server) StreamEvents(req *structpb.Struct, stream ProjectionQuery_StreamEventsServer) error {
	ctx := stream.Context()
	fields := req.GetFields()

	afterSequence := int64(fields["after_sequence"].GetNumberValue())
	limit := int(fields["limit"].GetNumberValue())
	if limit <= 0 {
		limit = 100
	}

	var eventTypes []string
	for _, v := range fields["event_types"].GetListValue().GetValues() {
		if s := v.GetStringValue(); s != "" {
			eventTypes = append(eventTypes, s)
		}
	}

	for {
		page, err := s.Events.ReadStream(ctx, nil, eventstore.ReadStreamParams{
			AfterSequence: afterSequence,
			Limit:         limit,
			EventTypes:    eventTypes,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}

			return status.Errorf(codes.Internal, "read event stream: %v", err)
		}

		for _, event := range page.Events {
			item, err := eventToStruct(event)
			if err != nil {
				return status.Errorf(codes.Internal, "marshal event %s: %v", event.ID, err)
			}

			if err := stream.Send(item); err != nil {
				return err
			}
		}

		if !page.HasMore || page.NextSequence == nil {
			return nil
		}

		afterSequence = *page.NextSequence
	}
}

// eventToStruct round-trips an eventdom.Event through JSON into a
// field-map structpb.Struct, the same conversion ProjectionHandler.Rows
// applies to scanned projection rows.
func eventToStruct(event any) (*structpb.Struct, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	return structpb.NewStruct(fields)
}
