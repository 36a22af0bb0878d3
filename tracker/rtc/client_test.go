package rtc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectAreasXML = `<?xml version="1.0" encoding="UTF-8"?>
<jp06:project-areas xmlns:jp06="http://jazz.net/xmlns/prod/jazz/process/0.6/">
  <jp06:project-area jp06:name="Sandbox">
    <jp06:url>%s/ccm/process/project-areas/_proj123</jp06:url>
  </jp06:project-area>
  <jp06:project-area jp06:name="Other">
    <jp06:url>%s/ccm/process/project-areas/_other</jp06:url>
  </jp06:project-area>
</jp06:project-areas>`

const workItemXML = `<?xml version="1.0" encoding="UTF-8"?>
<oslc_cm:ChangeRequest xmlns:oslc_cm="http://open-services.net/ns/cm#"
    xmlns:dcterms="http://purl.org/dc/terms/"
    xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
    xmlns:rtc_ext="http://jazz.net/xmlns/prod/jazz/rtc/ext/1.0/">
  <dcterms:title>old title</dcterms:title>
  <dcterms:description>old description</dcterms:description>
  <dcterms:subject>old_tag</dcterms:subject>
  <rtc_ext:com.ibm.team.apt.attribute.complexity rdf:resource="https://rtc/complexity/1"/>
</oslc_cm:ChangeRequest>`

type rtcServer struct {
	*httptest.Server
	executedActions []string
}

func newRtcServer(t *testing.T) *rtcServer {
	s := &rtcServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ccm/authenticated/identity", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ccm/process/project-areas", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, projectAreasXML, s.URL, s.URL)
	})
	mux.HandleFunc("/ccm/oslc/workflows/_proj123/actions/com.ibm.team.apt.storyWorkflow", func(w http.ResponseWriter, r *http.Request) {
		// this endpoint must be called without the OSLC core header
		assert.Empty(t, r.Header.Get("OSLC-Core-version"))
		fmt.Fprint(w, `[{"dc:title":"Start Working","dc:identifier":"a1"},{"dc:title":"Accept","dc:identifier":"a3"}]`)
	})
	mux.HandleFunc("/ccm/oslc/enumerations/_proj123/complexity", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"oslc:results":[{"dcterms:identifier":"0","rdf:about":"https://rtc/complexity/0"},{"dcterms:identifier":"3","rdf:about":"https://rtc/complexity/3"}]}`)
	})
	mux.HandleFunc("/ccm/oslc/workitems/123", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			if action := r.URL.Query().Get("_action"); action != "" {
				s.executedActions = append(s.executedActions, action)
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Header.Get("Accept") == "application/xml" {
			fmt.Fprint(w, workItemXML)
			return
		}
		fmt.Fprint(w, `{
			"dcterms:identifier": 123,
			"dcterms:title": "Add login page",
			"dcterms:type": "Story",
			"oslc_cm:status": "In Development",
			"rtc_ext:com.ibm.team.workitem.attribute.storyPointsNumeric": 3,
			"dcterms:contributor": {"rdf:resource": "https://rtc/jts/users/NTD1HC"},
			"rtc_cm:com.ibm.team.workitem.linktype.parentworkitem.parent": [{"rdf:resource": "https://rtc/workitems/100"}]
		}`)
	})
	s.Server = httptest.NewServer(mux)
	return s
}

func newTestClient(t *testing.T, server *rtcServer) *Client {
	client, err := NewClient(context.Background(), Options{
		Hostname:   server.URL,
		Project:    "Sandbox",
		Username:   "user",
		Token:      "dG9rZW4=",
		WorkflowID: "com.ibm.team.apt.storyWorkflow",
	})
	require.NoError(t, err)
	return client
}

func TestClient(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, server *rtcServer, client *Client){
		"login resolves project area": testLogin,
		"action identifiers":          testActionIdentifiers,
		"complexity link":             testComplexityLink,
		"get work item":               testGetWorkItem,
		"execute action":              testExecuteAction,
	} {
		t.Run(scenario, func(t *testing.T) {
			server := newRtcServer(t)
			defer server.Close()
			client := newTestClient(t, server)
			fn(t, server, client)
		})
	}
}

func testLogin(t *testing.T, server *rtcServer, client *Client) {
	assert.Equal(t, "_proj123", client.ProjectID())
}

func testActionIdentifiers(t *testing.T, server *rtcServer, client *Client) {
	identifiers, err := client.ActionIdentifiers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Start Working": "a1", "Accept": "a3"}, identifiers)
}

func testComplexityLink(t *testing.T, server *rtcServer, client *Client) {
	link, err := client.ComplexityLink(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "https://rtc/complexity/3", link)

	_, err = client.ComplexityLink(context.Background(), 4)
	assert.Error(t, err)
}

func testGetWorkItem(t *testing.T, server *rtcServer, client *Client) {
	workItem, err := client.GetWorkItem(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "123", workItem.Identifier.String())
	assert.Equal(t, "Add login page", workItem.Title)
	assert.Equal(t, "In Development", workItem.Status)
	assert.Equal(t, float64(3), workItem.StoryPoint)
	assert.Equal(t, "NTD1HC", workItem.Contributor.ID())
	assert.Equal(t, "100", workItem.Parents[0].ID())
}

func testExecuteAction(t *testing.T, server *rtcServer, client *Client) {
	err := client.ExecuteAction(context.Background(), "123", "Start Working")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, server.executedActions)

	err = client.ExecuteAction(context.Background(), "123", "Unknown Action")
	assert.Error(t, err)
}
