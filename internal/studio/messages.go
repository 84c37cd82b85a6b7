package studio

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Notice levels.
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notice codes. Clients switch on Code; Message is for display.
const (
	CodeGenerated       = "generated"
	CodePending         = "pending"
	CodeImagesReady     = "images_ready"
	CodeStillPending    = "still_pending"
	CodeNothingPending  = "nothing_pending"
	CodeAuthRequired    = "auth_required"
	CodeModeration      = "moderation"
	CodeRemoteError     = "remote_error"
	CodeRequestError    = "request_error"
	CodeNoResult        = "no_result"
	CodeInvalidInput    = "invalid_input"
	CodePromptEnhanced  = "prompt_enhanced"
	CodePromptFallback  = "prompt_fallback"
	CodeVideoSubmitted  = "video_submitted"
	CodeVideoReady      = "video_ready"
	CodeVideoInProgress = "video_in_progress"
	CodeVideoCompleted  = "video_completed"
	CodeVideoFailed     = "video_failed"
	CodeJobDismissed    = "job_dismissed"
	CodeJobNotFound     = "job_not_found"
	CodeCredentialsSet  = "credentials_set"
)

// Notice is the user-visible outcome of an action.
type Notice struct {
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var supportedLocales = []language.Tag{language.English, language.Indonesian}

var localeMatcher = language.NewMatcher(supportedLocales)

type entry struct {
	code string
	en   string
	id   string
}

var messages = []entry{
	{CodeGenerated, "Image generated successfully.", "Gambar berhasil dibuat."},
	{CodePending, "Generation started. Waiting for %d image(s).", "Pembuatan dimulai. Menunggu %d gambar."},
	{CodeImagesReady, "%d image(s) ready.", "%d gambar siap."},
	{CodeStillPending, "Still generating %d image(s). Check again in a moment.", "Masih membuat %d gambar. Periksa lagi sebentar lagi."},
	{CodeNothingPending, "No images are waiting.", "Tidak ada gambar yang menunggu."},
	{CodeAuthRequired, "Please enter your %s API key.", "Masukkan API key %s Anda."},
	{CodeModeration, "Content moderation failed. Please ensure the content is appropriate.", "Moderasi konten gagal. Pastikan konten sesuai."},
	{CodeRemoteError, "The generation service returned an error (status %d).", "Layanan pembuatan mengembalikan galat (status %d)."},
	{CodeRequestError, "Could not reach the generation service.", "Tidak dapat menghubungi layanan pembuatan."},
	{CodeNoResult, "No valid result found in the response. Please try again.", "Tidak ada hasil yang valid. Silakan coba lagi."},
	{CodeInvalidInput, "Invalid input: %s", "Input tidak valid: %s"},
	{CodePromptEnhanced, "Prompt enhanced.", "Prompt telah ditingkatkan."},
	{CodePromptFallback, "Prompt enhancement unavailable, using your prompt as is.", "Peningkatan prompt tidak tersedia, prompt asli digunakan."},
	{CodeVideoSubmitted, "Video generation started. Request ID: %s", "Pembuatan video dimulai. ID permintaan: %s"},
	{CodeVideoReady, "Video generated successfully.", "Video berhasil dibuat."},
	{CodeVideoInProgress, "Video is still being generated (%s).", "Video masih dibuat (%s)."},
	{CodeVideoCompleted, "Video finished. Fetch the result to view it.", "Video selesai. Ambil hasilnya untuk melihat."},
	{CodeVideoFailed, "Video generation failed: %s", "Pembuatan video gagal: %s"},
	{CodeJobDismissed, "Pending job removed.", "Pekerjaan tertunda dihapus."},
	{CodeJobNotFound, "No such pending job.", "Pekerjaan tertunda tidak ditemukan."},
	{CodeCredentialsSet, "API keys updated.", "API key diperbarui."},
}

var messageCatalog = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, m := range messages {
		_ = b.SetString(language.English, m.code, m.en)
		_ = b.SetString(language.Indonesian, m.code, m.id)
	}
	return b
}

// printerFor picks the closest supported locale.
func printerFor(locale string) *message.Printer {
	tag := language.English
	if locale != "" {
		if parsed, err := language.Parse(locale); err == nil {
			_, idx, _ := localeMatcher.Match(parsed)
			tag = supportedLocales[idx]
		}
	}
	return message.NewPrinter(tag, message.Catalog(messageCatalog))
}

func notice(p *message.Printer, level, code string, args ...any) Notice {
	return Notice{Level: level, Code: code, Message: p.Sprintf(code, args...)}
}
