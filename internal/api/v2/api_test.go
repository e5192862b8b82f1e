// api_test.go: HTTP-level tests against a real in-memory SQLite datastore.
package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/printprob/bookdb/internal/conf"
	"github.com/printprob/bookdb/internal/datastore"
	"github.com/printprob/bookdb/internal/iiif"
)

const testToken = "test-token"

// testStore adapts a bare GORM store to the datastore interface for tests.
type testStore struct {
	*datastore.DataStore
}

func (testStore) Open() error  { return nil }
func (testStore) Close() error { return nil }

func newTestStore(t *testing.T) testStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := testStore{DataStore: &datastore.DataStore{DB: db}}
	require.NoError(t, datastore.Migrate(db))
	return store
}

func newTestAPI(t *testing.T) (*Controller, testStore) {
	t.Helper()

	settings := &conf.Settings{
		Version: "test",
		WebServer: conf.WebServerSettings{
			Enabled:   true,
			AuthToken: testToken,
		},
		Images: conf.ImageSettings{
			BaseURL: "https://iiif.test/",
		},
	}

	store := newTestStore(t)
	e := echo.New()
	controller, err := New(e, store, settings, log.New(io.Discard, "", 0), nil)
	require.NoError(t, err)
	t.Cleanup(controller.Shutdown)
	return controller, store
}

// doRequest performs a request against the controller's echo instance.
func doRequest(c *Controller, method, path, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	c, _ := newTestAPI(t)

	rec := doRequest(c, http.MethodGet, "/api/v2/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database_status"])
}

func TestAuthRequiredForMutations(t *testing.T) {
	c, _ := newTestAPI(t)

	payload := `{"pq_title":"Unauthorized print"}`

	rec := doRequest(c, http.MethodPost, "/api/v2/books", payload, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(c, http.MethodPost, "/api/v2/books", payload, "wrong-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Reads stay public.
	rec = doRequest(c, http.MethodGet, "/api/v2/books", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBookLifecycle(t *testing.T) {
	c, _ := newTestAPI(t)

	rec := doRequest(c, http.MethodPost, "/api/v2/books",
		`{"pq_title":"The compleat angler","pq_author":"Walton","vid":555}`, testToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Contains(t, created["label"], "(555)")

	rec = doRequest(c, http.MethodGet, "/api/v2/books/"+id, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody(t, rec)
	assert.Equal(t, "The compleat angler", detail["pq_title"])

	rec = doRequest(c, http.MethodGet, "/api/v2/books?author=Walton", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)
	assert.Equal(t, float64(1), list["count"])

	rec = doRequest(c, http.MethodPut, "/api/v2/books/"+id,
		`{"pp_notes":"title page damaged"}`, testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody(t, rec)
	assert.Equal(t, "title page damaged", updated["pp_notes"])
	assert.Equal(t, "The compleat angler", updated["pq_title"])

	rec = doRequest(c, http.MethodDelete, "/api/v2/books/"+id, "", testToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(c, http.MethodGet, "/api/v2/books/"+id, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateEEBOBookFieldRejected(t *testing.T) {
	c, store := newTestAPI(t)

	vid := uint(42)
	book := &datastore.Book{PQTitle: "Catalog copy", VID: &vid, IsEEBOBook: true}
	require.NoError(t, store.CreateBook(book))

	rec := doRequest(c, http.MethodPut, "/api/v2/books/"+book.ID, `{"vid":43}`, testToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSpreadImageURLs(t *testing.T) {
	c, store := newTestAPI(t)

	book := &datastore.Book{PQTitle: "Spread imagery"}
	require.NoError(t, store.CreateBook(book))

	rec := doRequest(c, http.MethodPost, "/api/v2/spreads",
		`{"book":"`+book.ID+`","sequence":0,"tif":"scans/vol1/0001.tif"}`, testToken)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	image, ok := body["image"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://iiif.test/scans/vol1/0001.tif/full/full/0/default.jpg", image["web_url"])
	assert.Equal(t, "https://iiif.test/scans/vol1/0001.tif/full/200,/0/default.jpg", image["thumbnail"])

	// The owning book's spread count updates eagerly.
	rec = doRequest(c, http.MethodGet, "/api/v2/books/"+book.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody(t, rec)
	assert.Equal(t, float64(1), detail["n_spreads"])
	assert.NotNil(t, detail["cover_spread"])
}

// seedHierarchy builds a book with one page, one line and one character
// directly in the store.
func seedHierarchy(t *testing.T, store testStore) (book *datastore.Book, line *datastore.Line, char *datastore.Character) {
	t.Helper()

	book = &datastore.Book{PQTitle: "Hierarchy"}
	require.NoError(t, store.CreateBook(book))

	pageRun := &datastore.PageRun{BookID: book.ID}
	require.NoError(t, store.CreatePageRun(pageRun))
	lineRun := &datastore.LineRun{BookID: book.ID}
	require.NoError(t, store.CreateLineRun(lineRun))
	charRun := &datastore.CharacterRun{BookID: book.ID}
	require.NoError(t, store.CreateCharacterRun(charRun))

	page := &datastore.Page{
		CreatedByRunID: pageRun.ID,
		Side:           datastore.SideSingle,
		Image:          iiif.Image{Tif: "scans/page0.tif"},
	}
	require.NoError(t, store.CreatePage(page))

	line = &datastore.Line{CreatedByRunID: lineRun.ID, PageID: page.ID, YMin: 10, YMax: 40}
	require.NoError(t, store.CreateLine(line))

	require.NoError(t, store.CreateCharacterClass(&datastore.CharacterClass{
		Classname: "a", Group: datastore.GroupLowercase,
	}))
	char = &datastore.Character{
		CreatedByRunID:   charRun.ID,
		LineID:           line.ID,
		XMin:             5,
		XMax:             25,
		CharacterClassID: "a",
	}
	require.NoError(t, store.CreateCharacter(char))
	return book, line, char
}

func TestCharacterImageRegions(t *testing.T) {
	c, store := newTestAPI(t)
	_, _, char := seedHierarchy(t, store)

	rec := doRequest(c, http.MethodGet, "/api/v2/characters/"+char.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	image, ok := body["image"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://iiif.test/scans/page0.tif/5,10,20,30/full/0/default.jpg", image["web_url"])
	// Buffer expands 50px each way, clamped at the origin.
	assert.Equal(t, "https://iiif.test/scans/page0.tif/0,0,120,130/150,/0/default.jpg", image["buffer"])
}

func TestAnnotateEndpoint(t *testing.T) {
	c, store := newTestAPI(t)
	_, _, char := seedHierarchy(t, store)
	require.NoError(t, store.CreateCharacterClass(&datastore.CharacterClass{
		Classname: "e", Group: datastore.GroupLowercase,
	}))

	rec := doRequest(c, http.MethodPost, "/api/v2/characters/annotate",
		`{"characters":["`+char.ID+`"],"human_character_class":"e"}`, testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := store.GetCharacter(char.ID)
	require.NoError(t, err)
	require.NotNil(t, got.HumanCharacterClassID)
	assert.Equal(t, "e", *got.HumanCharacterClassID)

	// A batch with one bad ID fails outright.
	rec = doRequest(c, http.MethodPost, "/api/v2/characters/annotate",
		`{"characters":["`+char.ID+`","missing"],"human_character_class":"a"}`, testToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	got, err = store.GetCharacter(char.ID)
	require.NoError(t, err)
	assert.Equal(t, "e", *got.HumanCharacterClassID)
}

func TestGroupingEndpoints(t *testing.T) {
	c, store := newTestAPI(t)
	_, _, char := seedHierarchy(t, store)

	rec := doRequest(c, http.MethodPost, "/api/v2/charactergroupings",
		`{"label":"odd sorts","notes":"check later","username":"curator","characters":["`+char.ID+`"]}`,
		testToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Len(t, created["characters"], 1)

	rec = doRequest(c, http.MethodPatch, "/api/v2/charactergroupings/"+id+"/delete_characters",
		`{"characters":["`+char.ID+`"]}`, testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["characters"], 0)

	rec = doRequest(c, http.MethodPatch, "/api/v2/charactergroupings/"+id+"/add_characters",
		`{"characters":["`+char.ID+`"]}`, testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Len(t, body["characters"], 1)

	rec = doRequest(c, http.MethodDelete, "/api/v2/charactergroupings/"+id, "", testToken)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMostRecentPagesEndpoint(t *testing.T) {
	c, store := newTestAPI(t)
	book, _, _ := seedHierarchy(t, store)

	// A newer run supersedes the seeded one.
	newer := &datastore.PageRun{BookID: book.ID}
	require.NoError(t, store.CreatePageRun(newer))
	require.NoError(t, store.CreatePage(&datastore.Page{
		CreatedByRunID: newer.ID, Side: datastore.SideLeft,
	}))
	require.NoError(t, store.CreatePage(&datastore.Page{
		CreatedByRunID: newer.ID, Side: datastore.SideRight,
	}))

	rec := doRequest(c, http.MethodGet, "/api/v2/books/"+book.ID+"/pages", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["count"])
}

func TestCharacterClassEndpoints(t *testing.T) {
	c, _ := newTestAPI(t)

	rec := doRequest(c, http.MethodPost, "/api/v2/characterclasses",
		`{"classname":"A","label":"A","group":"cu"}`, testToken)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(c, http.MethodPost, "/api/v2/characterclasses",
		`{"classname":"A","group":"cu"}`, testToken)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(c, http.MethodGet, "/api/v2/characterclasses/A", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "cu", body["group"])
}
