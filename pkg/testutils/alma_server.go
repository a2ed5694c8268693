package testutils

import (
	_ "embed"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/beevik/etree"
)

const (
	FixtureExternalID = "28542882"
	FixtureRecordID   = "99156845176203941"
	FixtureHoldingID  = "222607866070003941"
	FixtureURN        = "URN-3:HUL.DRS.OBJECT:12345678"
	FixtureAPIKey     = "test-key"

	// SRUPath is the search path; the external id is appended to it
	SRUPath = "/view/sru/01HVD_INST?version=1.2&operation=searchRetrieve&recordSchema=marcxml&query=alma.all_for_ui="

	defaultSubfieldZ = "Preservation master, [DRS OBJECT URN]"
)

var (
	//go:embed testdata/sru.xml
	sruFixture []byte
	//go:embed testdata/sru_empty.xml
	sruEmptyFixture []byte
	//go:embed testdata/holdings.xml
	holdingsFixture []byte
	//go:embed testdata/holding.xml
	holdingFixture []byte
)

// 🧪 AlmaServer is an httptest server speaking just enough Alma for one thesis
type AlmaServer struct {
	*httptest.Server

	mu        sync.Mutex
	calls     map[string]int
	subfieldZ string
	lastPut   []byte

	// PutStatus is returned for holding PUTs
	PutStatus int
	// HoldingsStatus is returned for the holdings list
	HoldingsStatus int
	// HoldingsBody replaces the holdings list fixture when set
	HoldingsBody []byte
	// EchoPut controls whether a PUT changes what the search endpoint returns
	EchoPut bool
}

// NewAlmaServer starts a fixture server closed with t
func NewAlmaServer(t testing.TB) *AlmaServer {
	t.Helper()
	s := &AlmaServer{
		calls:          map[string]int{},
		subfieldZ:      defaultSubfieldZ,
		PutStatus:      http.StatusOK,
		HoldingsStatus: http.StatusOK,
		EchoPut:        true,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// SRUBase is what the client appends external ids to
func (s *AlmaServer) SRUBase() string {
	return s.URL + SRUPath
}

// Calls returns how many times a route was hit: sru, holdings, holding, put
func (s *AlmaServer) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls counts every request served
func (s *AlmaServer) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// LastPut is the body of the most recent holding PUT
func (s *AlmaServer) LastPut() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPut
}

// SetSubfieldZ changes the 852 $z the search endpoint reports
func (s *AlmaServer) SetSubfieldZ(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subfieldZ = v
}

func (s *AlmaServer) count(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[route]++
}

func (s *AlmaServer) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xml")

	if strings.HasPrefix(r.URL.Path, "/view/sru/") {
		s.count("sru")
		s.search(w, r)
		return
	}

	if r.URL.Query().Get("apikey") != FixtureAPIKey {
		http.Error(w, "<error>bad api key</error>", http.StatusUnauthorized)
		return
	}

	holdingsPath := "/almaws/v1/bibs/" + FixtureRecordID + "/holdings"
	holdingPath := holdingsPath + "/" + FixtureHoldingID

	switch {
	case r.URL.Path == holdingsPath && r.Method == http.MethodGet:
		s.count("holdings")
		body := holdingsFixture
		if s.HoldingsBody != nil {
			body = s.HoldingsBody
		}
		w.WriteHeader(s.HoldingsStatus)
		_, _ = w.Write(body)
	case r.URL.Path == holdingPath && r.Method == http.MethodGet:
		s.count("holding")
		_, _ = w.Write(holdingFixture)
	case r.URL.Path == holdingPath && r.Method == http.MethodPut:
		s.count("put")
		s.put(w, r)
	default:
		s.count("other")
		http.Error(w, "<error>not found</error>", http.StatusNotFound)
	}
}

func (s *AlmaServer) search(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("query") != "alma.all_for_ui="+FixtureExternalID {
		_, _ = w.Write(sruEmptyFixture)
		return
	}
	s.mu.Lock()
	z := s.subfieldZ
	s.mu.Unlock()
	_, _ = w.Write([]byte(strings.Replace(string(sruFixture), "SUBFIELD_Z", z, 1)))
}

func (s *AlmaServer) put(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "<error>read</error>", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.lastPut = body
	status := s.PutStatus
	echo := s.EchoPut
	s.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		http.Error(w, "<error>malformed</error>", http.StatusBadRequest)
		return
	}
	if echo {
		if z := doc.FindElement("//datafield[@tag='852']/subfield[@code='z']"); z != nil {
			s.SetSubfieldZ(z.Text())
		}
	}
	_, _ = w.Write(body)
}
