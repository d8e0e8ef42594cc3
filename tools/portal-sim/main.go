package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

type contact struct {
	ID    int64
	Name  string
	Email string
	Phone string
}

var seedContacts = []contact{
	{ID: 101, Name: "Anna Kowalska", Email: "anna.kowalska@example.com", Phone: "+48 600 100 200"},
	{ID: 102, Name: "Boris Ivanov", Email: "b.ivanov@example.com", Phone: "+380 50 123 4567"},
	{ID: 103, Name: "Carla Mendes", Email: "carla@example.com.br", Phone: "+55 11 91234 5678"},
	{ID: 104, Name: "David Okafor", Email: "", Phone: "+1 415 555 0199"},
	{ID: 105, Name: "Elena Petrova", Email: "elena.petrova@example.com", Phone: ""},
}

// Shapes mirror the envelopes and casings real portal deployments
// return; rotate cycles through them per request so one dev session
// exercises the whole normalization path.
var shapes = []string{"bare", "result", "nested", "classic"}

var requestSeq atomic.Int64

func main() {
	var (
		port  = flag.String("port", getenv("PORT", "8090"), "listen port")
		shape = flag.String("shape", getenv("SHAPE", "rotate"), "response shape: bare|result|nested|classic|rotate")
		token = flag.String("token", getenv("CRM_TOKEN", ""), "require this bearer token when set")
	)
	flag.Parse()

	if *shape != "rotate" && !validShape(*shape) {
		fatal(fmt.Sprintf("unknown shape %q (want bare|result|nested|classic|rotate)", *shape))
	}

	http.HandleFunc("/v1/crm/", func(w http.ResponseWriter, r *http.Request) {
		handleCRM(w, r, *shape, *token)
	})

	fmt.Printf("portal-sim listening on :%s shape=%s\n", *port, *shape)
	if err := http.ListenAndServe(":"+*port, nil); err != nil {
		fatal(err.Error())
	}
}

func handleCRM(w http.ResponseWriter, r *http.Request, shape, token string) {
	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	// Paths look like /v1/crm/{portal}/contacts or /v1/crm/{portal}/contacts/{id}.
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/crm/"), "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[1] != "contacts" {
		http.NotFound(w, r)
		return
	}

	if shape == "rotate" {
		shape = shapes[requestSeq.Add(1)%int64(len(shapes))]
	}
	fmt.Printf("%s %s portal=%s shape=%s\n", r.Method, r.URL.Path, parts[0], shape)

	if len(parts) == 3 {
		id, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		for _, c := range seedContacts {
			if c.ID == id {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(renderSingle(c, shape))
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		return
	}

	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))
	matched := make([]contact, 0, len(seedContacts))
	for _, c := range seedContacts {
		if query == "" || strings.Contains(strings.ToLower(c.Name), query) || strings.Contains(strings.ToLower(c.Email), query) {
			matched = append(matched, c)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(renderList(matched, shape))
}

func renderList(list []contact, shape string) any {
	items := make([]any, 0, len(list))
	for _, c := range list {
		items = append(items, renderContact(c, shape))
	}
	switch shape {
	case "bare":
		return items
	case "nested":
		return map[string]any{"result": map[string]any{"items": items, "total": len(items)}}
	default:
		return map[string]any{"result": items, "total": len(items)}
	}
}

func renderSingle(c contact, shape string) any {
	switch shape {
	case "bare":
		return renderContact(c, shape)
	case "nested":
		return map[string]any{"data": renderContact(c, shape)}
	default:
		return map[string]any{"result": renderContact(c, shape)}
	}
}

func renderContact(c contact, shape string) map[string]any {
	switch shape {
	case "classic":
		// The classic REST surface sends string ids, split names and
		// multi-value fields as {VALUE: ...} objects.
		first, last := splitName(c.Name)
		m := map[string]any{
			"ID":         strconv.FormatInt(c.ID, 10),
			"FIRST_NAME": first,
			"LAST_NAME":  last,
		}
		if c.Email != "" {
			m["EMAIL"] = []any{map[string]any{"VALUE": c.Email, "VALUE_TYPE": "WORK"}}
		}
		if c.Phone != "" {
			m["PHONE"] = []any{map[string]any{"VALUE": c.Phone, "VALUE_TYPE": "WORK"}}
		}
		return m
	case "result":
		return map[string]any{"Id": c.ID, "Name": c.Name, "Email": c.Email, "Phone": c.Phone}
	default:
		return map[string]any{"id": c.ID, "name": c.Name, "email": c.Email, "phone": c.Phone}
	}
}

func splitName(full string) (string, string) {
	first, last, ok := strings.Cut(full, " ")
	if !ok {
		return full, ""
	}
	return first, last
}

func validShape(s string) bool {
	for _, known := range shapes {
		if s == known {
			return true
		}
	}
	return false
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
