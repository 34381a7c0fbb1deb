package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadGMIDKey is where the record's GMID is stashed in a point's
// payload, since GMID's 32-hex-char shape isn't a valid Qdrant point ID
// (Qdrant accepts only unsigned integers or UUID strings). pointID derives
// a deterministic UUID from the GMID so upserting the same GMID twice
// always touches the same point.
const payloadGMIDKey = "gmid"

func pointID(gmid string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.Nil, []byte(gmid)).String())
}

// QdrantIndex is the C4 implementation grounded on Qdrant's named-vectors-
// per-point feature, matching the schema the original media library used:
// one collection, two named vectors, cosine distance.
type QdrantIndex struct {
	client         *qdrant.Client
	collectionName string
}

// NewQdrant dials a Qdrant instance at addr (host:grpcPort) and returns an
// Index bound to collectionName.
func NewQdrant(addr, collectionName string) (*QdrantIndex, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: parse qdrant addr %s: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: parse qdrant port %s: %w", addr, err)
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: dial qdrant at %s: %w", addr, err)
	}
	return &QdrantIndex{client: client, collectionName: collectionName}, nil
}

func (q *QdrantIndex) EnsureCollection(ctx context.Context, dimension int, fixDimensionOnMismatch bool) error {
	info, err := q.client.GetCollectionInfo(ctx, q.collectionName)
	if err != nil {
		return q.createCollection(ctx, dimension)
	}

	existingDim, ok := namedVectorSize(info, VectorNameText)
	if !ok || existingDim == uint64(dimension) {
		return nil
	}

	if !fixDimensionOnMismatch {
		return fmt.Errorf("vectorindex: collection %q has dimension %d, want %d (fix_dimension_on_mismatch is disabled)",
			q.collectionName, existingDim, dimension)
	}

	slog.Warn("vectorindex: destructively recreating collection due to dimension mismatch",
		"collection", q.collectionName, "existing_dimension", existingDim, "target_dimension", dimension)

	if err := q.client.DeleteCollection(ctx, q.collectionName); err != nil {
		return fmt.Errorf("vectorindex: delete mismatched collection: %w", err)
	}
	return q.createCollection(ctx, dimension)
}

func namedVectorSize(info *qdrant.CollectionInfo, name string) (uint64, bool) {
	if info == nil || info.GetConfig() == nil || info.GetConfig().GetParams() == nil {
		return 0, false
	}
	vectorsConfig := info.GetConfig().GetParams().GetVectorsConfig()
	paramsMap := vectorsConfig.GetParamsMap()
	if paramsMap == nil {
		return 0, false
	}
	params, ok := paramsMap.GetMap()[name]
	if !ok {
		return 0, false
	}
	return params.GetSize(), true
}

func (q *QdrantIndex) createCollection(ctx context.Context, dimension int) error {
	size := uint64(dimension)
	vectorsConfig := qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
		VectorNameText:  {Size: size, Distance: qdrant.Distance_Cosine},
		VectorNameImage: {Size: size, Distance: qdrant.Distance_Cosine},
	})
	err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig:  vectorsConfig,
	})
	if err != nil {
		return fmt.Errorf("vectorindex: create collection %q: %w", q.collectionName, err)
	}
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, p Point) error {
	payload := make(map[string]*qdrant.Value, len(p.Payload)+1)
	for k, v := range p.Payload {
		payload[k] = toQdrantValue(v)
	}
	payload[payloadGMIDKey] = qdrant.NewValueString(p.GMID)

	vectors := qdrant.NewVectorsMap(map[string]*qdrant.Vector{
		VectorNameText:  qdrant.NewVector(p.TextVector...),
		VectorNameImage: qdrant.NewVector(p.ImageVector...),
	})

	point := &qdrant.PointStruct{
		Id:      pointID(p.GMID),
		Vectors: vectors,
		Payload: payload,
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("vectorindex: upsert %s: %w", p.GMID, err)
	}
	return nil
}

func (q *QdrantIndex) Delete(ctx context.Context, gmid string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collectionName,
		Points:         qdrant.NewPointsSelectorIDs([]*qdrant.PointId{pointID(gmid)}),
	})
	if err != nil {
		return fmt.Errorf("vectorindex: delete %s: %w", gmid, err)
	}
	return nil
}

func (q *QdrantIndex) Exists(ctx context.Context, gmid string) (bool, error) {
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collectionName,
		Ids:            []*qdrant.PointId{pointID(gmid)},
	})
	if err != nil {
		return false, fmt.Errorf("vectorindex: get %s: %w", gmid, err)
	}
	return len(points) > 0, nil
}

func (q *QdrantIndex) Search(ctx context.Context, vectorName string, query []float32, limit int, minScore float64) ([]Hit, error) {
	score := float32(minScore)
	using := vectorName
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Query:          qdrant.NewQuery(query...),
		Using:          &using,
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: &score,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: search %s: %w", vectorName, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		payload := fromQdrantPayload(r.GetPayload())
		gmid, _ := payload[payloadGMIDKey].(string)
		delete(payload, payloadGMIDKey)
		hits = append(hits, Hit{
			GMID:    gmid,
			Score:   float64(r.GetScore()),
			Payload: payload,
		})
	}
	return hits, nil
}

func (q *QdrantIndex) Stats(ctx context.Context) (Stats, error) {
	info, err := q.client.GetCollectionInfo(ctx, q.collectionName)
	if err != nil {
		return Stats{}, fmt.Errorf("vectorindex: stats: %w", err)
	}
	dim, _ := namedVectorSize(info, VectorNameText)
	return Stats{
		PointCount: int64(info.GetPointsCount()),
		Dimension:  int(dim),
	}, nil
}

func toQdrantValue(v any) *qdrant.Value {
	switch t := v.(type) {
	case string:
		return qdrant.NewValueString(t)
	case int:
		return qdrant.NewValueInt(int64(t))
	case int64:
		return qdrant.NewValueInt(t)
	case float64:
		return qdrant.NewValueDouble(t)
	case bool:
		return qdrant.NewValueBool(t)
	default:
		return qdrant.NewValueString(fmt.Sprintf("%v", t))
	}
}

func fromQdrantPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = v.GetStringValue()
		case *qdrant.Value_IntegerValue:
			out[k] = v.GetIntegerValue()
		case *qdrant.Value_DoubleValue:
			out[k] = v.GetDoubleValue()
		case *qdrant.Value_BoolValue:
			out[k] = v.GetBoolValue()
		default:
			out[k] = nil
		}
	}
	return out
}
