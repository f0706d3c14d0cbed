package config

const (
	defaultProjectsDir           = "~/.local/share/duet/projects"
	defaultAssetsDir             = "~/.local/share/duet/assets"
	defaultLogDir                = "~/.local/share/duet/logs"
	defaultCanvasWidth           = 1080
	defaultCanvasHeight          = 1920
	defaultCanvasFPS             = 30
	defaultLeftXOffset           = 60
	defaultRightXOffset          = 540
	defaultCaptionFontSize       = 36
	defaultLabelFontSize         = 32
	defaultCaptionBottom         = 220
	defaultLabelBottom           = 280
	defaultFadeSeconds           = 0.3
	defaultWrapColumns           = 22
	defaultCharacterHeight       = 600
	defaultCharacterBottom       = 300
	defaultVideoCodec            = "libx264"
	defaultPreset                = "medium"
	defaultCRF                   = 23
	defaultPixelFormat           = "yuv420p"
	defaultAudioCodec            = "aac"
	defaultAudioBitrate          = "192k"
	defaultMusicVolume           = 0.15
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-3-flash-preview"
	defaultLLMReferer            = "https://github.com/duet-video/duet"
	defaultLLMTitle              = "duet script writer"
	defaultLLMTimeoutSeconds     = 60
	defaultVoiceoverBaseURL      = "https://api.elevenlabs.io/v1"
	defaultVoiceoverModelID      = "eleven_multilingual_v2"
	defaultQuestionerVoiceID     = "JBFqnCBsd6RMkjVDRZzb"
	defaultExplainerVoiceID      = "EXAVITQu4vr4xnSDxMaL"
	defaultVoiceoverConcurrency  = 3
	defaultVoiceoverTimeout      = 60
	defaultQuestionerName        = "Thabo"
	defaultExplainerName         = "Lerato"
	defaultScriptStyle           = "educational"
	defaultTargetDurationSeconds = 45
	defaultNotifyTimeoutSeconds  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Styles lists the accepted script styles.
var Styles = []string{"motivation", "finance", "tech", "educational"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ProjectsDir: defaultProjectsDir,
			AssetsDir:   defaultAssetsDir,
			LogDir:      defaultLogDir,
		},
		Canvas: Canvas{
			Width:           defaultCanvasWidth,
			Height:          defaultCanvasHeight,
			FPS:             defaultCanvasFPS,
			LeftXOffset:     defaultLeftXOffset,
			RightXOffset:    defaultRightXOffset,
			CaptionFontSize: defaultCaptionFontSize,
			LabelFontSize:   defaultLabelFontSize,
			CaptionBottom:   defaultCaptionBottom,
			LabelBottom:     defaultLabelBottom,
			FadeSeconds:     defaultFadeSeconds,
			WrapColumns:     defaultWrapColumns,
			CharacterHeight: defaultCharacterHeight,
			CharacterBottom: defaultCharacterBottom,
		},
		Encoding: Encoding{
			VideoCodec:   defaultVideoCodec,
			Preset:       defaultPreset,
			CRF:          defaultCRF,
			PixelFormat:  defaultPixelFormat,
			AudioCodec:   defaultAudioCodec,
			AudioBitrate: defaultAudioBitrate,
			MusicVolume:  defaultMusicVolume,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Voiceover: Voiceover{
			BaseURL:           defaultVoiceoverBaseURL,
			ModelID:           defaultVoiceoverModelID,
			QuestionerVoiceID: defaultQuestionerVoiceID,
			ExplainerVoiceID:  defaultExplainerVoiceID,
			Concurrency:       defaultVoiceoverConcurrency,
			TimeoutSeconds:    defaultVoiceoverTimeout,
		},
		Script: Script{
			QuestionerName:        defaultQuestionerName,
			ExplainerName:         defaultExplainerName,
			DefaultStyle:          defaultScriptStyle,
			TargetDurationSeconds: defaultTargetDurationSeconds,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
