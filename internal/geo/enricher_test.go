package geo

import (
	"bytes"
	"context"
	"testing"
)

// mockGeocoder はGeocoderServiceのテスト用モック。
type mockGeocoder struct {
	geocodeFunc func(ctx context.Context, place string) *Result
	calls       []string
}

func (m *mockGeocoder) Geocode(ctx context.Context, place string) *Result {
	m.calls = append(m.calls, place)
	if m.geocodeFunc != nil {
		return m.geocodeFunc(ctx, place)
	}
	return nil
}

func TestEnricher_ResolvesExtractedPlace(t *testing.T) {
	var buf bytes.Buffer
	geocoder := &mockGeocoder{
		geocodeFunc: func(ctx context.Context, place string) *Result {
			return &Result{Latitude: 50.4501, Longitude: 30.5234, DisplayName: "Kyiv, Ukraine"}
		},
	}

	e := NewEnricher(NewExtractor(), geocoder, newTestLogger(&buf))

	result := e.Enrich(context.Background(), "Explosion in Kyiv, Ukraine", "")
	if result == nil {
		t.Fatal("解決できるはずの記事でnilが返った")
	}
	if result.Latitude != 50.4501 {
		t.Errorf("Latitude = %v, want 50.4501", result.Latitude)
	}

	if len(geocoder.calls) != 1 || geocoder.calls[0] != "Kyiv, Ukraine" {
		t.Errorf("抽出された地名でジオコーダーが呼ばれるべき: calls = %v", geocoder.calls)
	}
}

func TestEnricher_NoPlaceExtracted(t *testing.T) {
	var buf bytes.Buffer
	geocoder := &mockGeocoder{}

	e := NewEnricher(NewExtractor(), geocoder, newTestLogger(&buf))

	if result := e.Enrich(context.Background(), "markets rally today", "no places here"); result != nil {
		t.Errorf("地名が抽出できない場合はnilを返すべき: got %+v", result)
	}
	if len(geocoder.calls) != 0 {
		t.Error("地名が抽出できない場合はジオコーダーを呼ぶべきでない")
	}
}

func TestEnricher_GeocodeFailureReturnsNil(t *testing.T) {
	var buf bytes.Buffer
	geocoder := &mockGeocoder{
		geocodeFunc: func(ctx context.Context, place string) *Result {
			return nil
		},
	}

	e := NewEnricher(NewExtractor(), geocoder, newTestLogger(&buf))

	if result := e.Enrich(context.Background(), "Flooding in Mogadishu", ""); result != nil {
		t.Errorf("ジオコーディング失敗時はnilを返すべき: got %+v", result)
	}
}
