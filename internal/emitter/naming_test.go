package emitter

import "testing"

func TestPascalCase(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"cat.templates":                         "CatTemplates",
		"master_timeout":                        "MasterTimeout",
		"ingest.delete_geoip_database":          "IngestDeleteGeoipDatabase",
		"FieldMapping":                          "FieldMapping",
		"id":                                    "ID",
		"_types.Duration":                       "TypesDuration",
		"HTTPServer":                            "HTTPServer",
		"2fa":                                   "X2fa",
		"":                                      "X",
		"text_structure.find_message_structure": "TextStructureFindMessageStructure",
	}
	for in, want := range cases {
		if got := PascalCase(in); got != want {
			t.Errorf("PascalCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSnakeCase(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"cat.templates":        "cat_templates",
		"FieldMapping":         "field_mapping",
		"CatTemplatesResponse": "cat_templates_response",
		"HTTPServer":           "http_server",
	}
	for in, want := range cases {
		if got := SnakeCase(in); got != want {
			t.Errorf("SnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
