package collector

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/nishimvki/coverdiscover/internal/domain"
)

// mockCatalogSize is the number of distinct fake tracks queries map into,
// small enough that repeated runs hit duplicates.
const mockCatalogSize = 20000

// MockClient implements domain.Provider over a deterministic fake catalog
type MockClient struct {
	latency time.Duration
}

// NewMockClient sleeps for latency on every search to mimic the network
func NewMockClient(latency time.Duration) *MockClient {
	return &MockClient{latency: latency}
}

func (mc *MockClient) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchPage, error) {
	if req.Limit < 1 || req.Limit > MaxLimit {
		return domain.SearchPage{}, fmt.Errorf("%w: %d", ErrInvalidLimit, req.Limit)
	}
	if req.Offset < 0 || req.Offset+req.Limit > OffsetCap {
		return domain.SearchPage{}, fmt.Errorf("%w: offset=%d limit=%d", ErrOffsetCap, req.Offset, req.Limit)
	}

	if mc.latency > 0 {
		select {
		case <-ctx.Done():
			return domain.SearchPage{}, ctx.Err()
		case <-time.After(mc.latency):
		}
	}

	h := hashQuery(req.Query)
	total := mockTotal(h)

	var items []domain.Track
	for i := req.Offset; i < req.Offset+req.Limit && i < total; i++ {
		// 7919 is prime and coprime to the catalog size, so a query walks distinct tracks
		idx := int((uint64(h) + uint64(i)*7919) % mockCatalogSize)
		items = append(items, mockTrack(idx))
	}
	return domain.SearchPage{Total: total, Items: items}, nil
}

func hashQuery(q string) uint32 {
	f := fnv.New32a()
	f.Write([]byte(q))
	return f.Sum32()
}

// mockTotal leaves roughly one query in eight without hits
func mockTotal(h uint32) int {
	if h%8 == 0 {
		return 0
	}
	return int(h%6000) + 1
}

func mockTrack(idx int) domain.Track {
	id := fmt.Sprintf("mock%018d", idx)

	img := domain.Image{URL: fmt.Sprintf("https://picsum.photos/seed/%d/640/640", idx), Height: 640, Width: 640}
	if idx%3 == 0 {
		img = domain.Image{URL: fmt.Sprintf("https://picsum.photos/seed/%d/640/300", idx), Height: 300, Width: 640}
	}

	t := domain.Track{
		ID:          id,
		Name:        fmt.Sprintf("Simulated Track #%d", idx),
		Artists:     []string{fmt.Sprintf("Artist %d", idx%997)},
		Popularity:  (idx * 37) % 101,
		ExternalURL: "http://localhost/mock/track/" + id,
		Album: domain.Album{
			Name:        fmt.Sprintf("Simulated Album %d", idx%4001),
			ReleaseDate: fmt.Sprintf("%d-%02d-01", 1960+idx%65, 1+idx%12),
		},
	}
	if idx%11 != 0 {
		t.Album.Images = []domain.Image{img}
	}
	if idx%4 != 0 {
		t.PreviewURL = "http://localhost/mock/preview/" + id + ".mp3"
	}
	return t
}
