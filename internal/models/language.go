package models

// AutoDetect is the provider-side value for an unknown source language.
const AutoDetect = "auto-detect"

type Language struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Languages is the selectable catalogue, in display order.
var Languages = []Language{
	{"Auto-detect", AutoDetect},
	{"English", "English"},
	{"Romanian", "Romanian"},
	{"Spanish", "Spanish"},
	{"French", "French"},
	{"German", "German"},
	{"Italian", "Italian"},
	{"Portuguese", "Portuguese"},
	{"Russian", "Russian"},
	{"Chinese", "Chinese"},
	{"Japanese", "Japanese"},
	{"Korean", "Korean"},
	{"Arabic", "Arabic"},
	{"Hindi", "Hindi"},
	{"Turkish", "Turkish"},
	{"Polish", "Polish"},
	{"Dutch", "Dutch"},
	{"Swedish", "Swedish"},
}

// ResolveLanguage maps a display name to the provider name, or fallback if unknown.
func ResolveLanguage(name, fallback string) string {
	for _, l := range Languages {
		if l.Name == name || l.Provider == name {
			return l.Provider
		}
	}
	return fallback
}

// SourceLanguage resolves a source hint. Unknown hints mean auto-detect.
func SourceLanguage(name string) string {
	return ResolveLanguage(name, AutoDetect)
}

// TargetLanguage resolves a target. Auto-detect is not a valid target.
func TargetLanguage(name string) string {
	lang := ResolveLanguage(name, "English")
	if lang == AutoDetect {
		return "English"
	}
	return lang
}
