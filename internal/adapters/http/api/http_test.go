package api_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/verax/verax/internal/adapters/http/api"
	service "github.com/verax/verax/internal/app"
	"github.com/verax/verax/internal/domain/model"
	"github.com/verax/verax/internal/domain/types"
)

// Mock implementations for testing
type mockDependencies struct {
	submitResult service.SubmitResult
	submitErr    error
	submitted    []service.SubmitRequest

	raw     []byte
	count   int
	records []types.RecordView
	profile types.Profile
}

func (m *mockDependencies) Submit(ctx context.Context, req service.SubmitRequest) (service.SubmitResult, error) {
	if m.submitErr != nil {
		return service.SubmitResult{}, m.submitErr
	}
	m.submitted = append(m.submitted, req)
	return m.submitResult, nil
}

func (m *mockDependencies) GetRaw(ctx context.Context, key model.IdentityKey) ([]byte, error) {
	return m.raw, nil
}

func (m *mockDependencies) RecordCount(ctx context.Context, key model.IdentityKey) (int, error) {
	return m.count, nil
}

func (m *mockDependencies) Records(ctx context.Context, key model.IdentityKey) ([]types.RecordView, error) {
	return m.records, nil
}

func (m *mockDependencies) Profile(ctx context.Context, key model.IdentityKey) (types.Profile, error) {
	return m.profile, nil
}

func (m *mockDependencies) Verify(ctx context.Context, key model.IdentityKey) (types.Verification, error) {
	return types.Verification{
		IdentityKey: key.String(),
		RecordCount: m.profile.TotalRecords,
		Verified:    m.profile.VerificationBadge,
		Profile:     m.profile,
	}, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

const testHexKey = "0101010101010101010101010101010101010101010101010101010101010101"

func newTestMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}})
	server.Register(context.Background(), mux)
	return mux
}

func TestPostRecord(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{
			submitResult: service.SubmitResult{SubmissionID: "sub-1", Accepted: true},
		}
		mux := newTestMux(deps)

		post := func(body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			return rec
		}

		Convey("A valid submission is accepted with 202", func() {
			rec := post(`{"identity_key":"` + testHexKey + `","domain":"go","score":80}`)
			So(rec.Code, ShouldEqual, http.StatusAccepted)

			var ack map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &ack), ShouldBeNil)
			So(ack["status"], ShouldEqual, "accepted")
			So(ack["submission_id"], ShouldEqual, "sub-1")
			So(deps.submitted, ShouldHaveLength, 1)
			So(deps.submitted[0].Domain, ShouldEqual, "go")
		})

		Convey("Malformed JSON yields 400", func() {
			rec := post(`{"identity_key":`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A missing identity key yields 400", func() {
			rec := post(`{"domain":"go","score":80}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A non-hex identity key yields 400", func() {
			rec := post(`{"identity_key":"zz","domain":"go","score":80}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A duplicate submission yields 200 with duplicate flag", func() {
			deps.submitResult = service.SubmitResult{Duplicate: true, Accepted: true}
			rec := post(`{"identity_key":"` + testHexKey + `","domain":"go","score":80}`)
			So(rec.Code, ShouldEqual, http.StatusOK)

			var ack map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &ack), ShouldBeNil)
			So(ack["duplicate"], ShouldEqual, true)
		})

		Convey("Queue backpressure yields 429", func() {
			deps.submitErr = service.ErrQueueFull
			rec := post(`{"identity_key":"` + testHexKey + `","domain":"go","score":80}`)
			So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("An invalid submission yields 400", func() {
			deps.submitErr = service.ErrInvalidSubmission
			rec := post(`{"identity_key":"` + testHexKey + `","domain":"go","score":80}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET on /records is not found", func() {
			req := httptest.NewRequest(http.MethodGet, "/records", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestGetLedger(t *testing.T) {
	Convey("Given a server with a populated ledger", t, func() {
		deps := &mockDependencies{
			raw:   []byte{0x00, 0x01, 0xff},
			count: 2,
			records: []types.RecordView{
				{Mode: "ai-graded", Domain: "go", Score: 80, ArtifactHash: "aa", Timestamp: 1700000000},
				{Mode: "peer", Domain: "rust", Score: 60, ArtifactHash: "bb", Timestamp: 1700000100},
			},
		}
		mux := newTestMux(deps)

		get := func(path string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			return rec
		}

		Convey("The raw view returns base64 bytes and length", func() {
			rec := get("/ledgers/" + testHexKey + "/raw")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var body map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body["identity_key"], ShouldEqual, testHexKey)
			So(body["byte_length"], ShouldEqual, 3)

			decoded, err := base64.StdEncoding.DecodeString(body["ledger"].(string))
			So(err, ShouldBeNil)
			So(decoded, ShouldResemble, []byte{0x00, 0x01, 0xff})
		})

		Convey("The count view returns the record count", func() {
			rec := get("/ledgers/" + testHexKey + "/count")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var body map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body["record_count"], ShouldEqual, 2)
		})

		Convey("The records view returns decoded records", func() {
			rec := get("/ledgers/" + testHexKey + "/records")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var views []types.RecordView
			So(json.Unmarshal(rec.Body.Bytes(), &views), ShouldBeNil)
			So(views, ShouldHaveLength, 2)
			So(views[0].Domain, ShouldEqual, "go")
		})

		Convey("An unknown view is not found", func() {
			rec := get("/ledgers/" + testHexKey + "/shape")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A bad key yields 400", func() {
			rec := get("/ledgers/nothex/raw")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A missing view segment yields 400", func() {
			rec := get("/ledgers/" + testHexKey)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestGetProfileAndVerify(t *testing.T) {
	Convey("Given a server with a computed profile", t, func() {
		deps := &mockDependencies{
			profile: types.Profile{
				IdentityKey:       testHexKey,
				TotalReputation:   73.33,
				CredibilityLevel:  "Strong",
				TrustIndex:        0.61,
				VerificationBadge: true,
				TotalRecords:      3,
				TopDomain:         "go",
			},
		}
		mux := newTestMux(deps)

		Convey("The profile endpoint returns the profile JSON", func() {
			req := httptest.NewRequest(http.MethodGet, "/profiles/"+testHexKey, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusOK)

			var profile types.Profile
			So(json.Unmarshal(rec.Body.Bytes(), &profile), ShouldBeNil)
			So(profile.TotalReputation, ShouldEqual, 73.33)
			So(profile.CredibilityLevel, ShouldEqual, "Strong")
			So(profile.TopDomain, ShouldEqual, "go")
		})

		Convey("The verify endpoint bundles count, flag and profile", func() {
			req := httptest.NewRequest(http.MethodGet, "/verify/"+testHexKey, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusOK)

			var v types.Verification
			So(json.Unmarshal(rec.Body.Bytes(), &v), ShouldBeNil)
			So(v.Verified, ShouldBeTrue)
			So(v.RecordCount, ShouldEqual, 3)
			So(v.Profile.TotalReputation, ShouldEqual, 73.33)
		})

		Convey("A bad profile key yields 400", func() {
			req := httptest.NewRequest(http.MethodGet, "/profiles/short", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{}
		mux := newTestMux(deps)

		Convey("Stats returns the provider payload", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusOK)

			var stats map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("Health serves prometheus metrics", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "verax")
		})
	})
}
