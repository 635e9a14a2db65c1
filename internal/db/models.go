package db

import "time"

// Dialog maps voiceqc.dialogs: one recorded call with its transcript.
type Dialog struct {
	DialogID   int64     `gorm:"column:dialog_id;primaryKey;autoIncrement"`
	DialogUUID string    `gorm:"column:dialog_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Title      *string   `gorm:"column:title;type:text"`
	SourceLang string    `gorm:"column:source_lang;type:text;not null;default:''"`
	Transcript string    `gorm:"column:transcript;type:text;not null;default:''"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt  time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Dialog) TableName() string { return "voiceqc.dialogs" }

// DialogSegment maps voiceqc.dialog_segments: one speaker utterance.
type DialogSegment struct {
	SegmentID int64  `gorm:"column:segment_id;primaryKey;autoIncrement"`
	DialogID  int64  `gorm:"column:dialog_id;type:bigint;not null;index"`
	Position  int    `gorm:"column:position;type:integer;not null"`
	Speaker   string `gorm:"column:speaker;type:text;not null"`
	Text      string `gorm:"column:text;type:text;not null"`
	StartMS   *int64 `gorm:"column:start_ms;type:bigint"`
	EndMS     *int64 `gorm:"column:end_ms;type:bigint"`
}

func (DialogSegment) TableName() string { return "voiceqc.dialog_segments" }

// DialogTranslation maps voiceqc.dialog_translations: the terminal state
// of one translation job, unique per dialog and target language.
type DialogTranslation struct {
	DialogTranslationID int64     `gorm:"column:dialog_translation_id;primaryKey;autoIncrement"`
	DialogID            int64     `gorm:"column:dialog_id;type:bigint;not null;uniqueIndex:uq_dialog_translations_dialog_lang"`
	TargetLang          string    `gorm:"column:target_lang;type:text;not null;uniqueIndex:uq_dialog_translations_dialog_lang"`
	SourceLang          string    `gorm:"column:source_lang;type:text;not null;default:''"`
	Status              string    `gorm:"column:status;type:text;not null"`
	TranslatedText      string    `gorm:"column:translated_text;type:text;not null;default:''"`
	ProviderName        string    `gorm:"column:provider_name;type:text;not null;default:''"`
	ErrorMessage        *string   `gorm:"column:error_message;type:text"`
	CreatedAt           time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt           time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (DialogTranslation) TableName() string { return "voiceqc.dialog_translations" }

// SegmentTranslation maps voiceqc.segment_translations.
type SegmentTranslation struct {
	SegmentTranslationID int64  `gorm:"column:segment_translation_id;primaryKey;autoIncrement"`
	DialogTranslationID  int64  `gorm:"column:dialog_translation_id;type:bigint;not null;uniqueIndex:uq_segment_translations_translation_segment"`
	SegmentID            int64  `gorm:"column:segment_id;type:bigint;not null;uniqueIndex:uq_segment_translations_translation_segment"`
	Speaker              string `gorm:"column:speaker;type:text;not null"`
	TranslatedText       string `gorm:"column:translated_text;type:text;not null"`
}

func (SegmentTranslation) TableName() string { return "voiceqc.segment_translations" }

// ProviderCredential maps voiceqc.provider_credentials. secret_value is
// opaque and never appears in logs or API responses.
type ProviderCredential struct {
	CredentialID        int64      `gorm:"column:credential_id;primaryKey;autoIncrement"`
	CredentialUUID      string     `gorm:"column:credential_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Label               string     `gorm:"column:label;type:text;not null;default:''"`
	SecretValue         string     `gorm:"column:secret_value;type:text;not null"`
	Active              bool       `gorm:"column:active;type:boolean;not null;default:true"`
	SuccessCount        int        `gorm:"column:success_count;type:integer;not null;default:0"`
	FailureCount        int        `gorm:"column:failure_count;type:integer;not null;default:0"`
	ConsecutiveFailures int        `gorm:"column:consecutive_failures;type:integer;not null;default:0"`
	LastUsedAt          *time.Time `gorm:"column:last_used_at;type:timestamptz"`
	LastFailureAt       *time.Time `gorm:"column:last_failure_at;type:timestamptz"`
	DeactivatedAt       *time.Time `gorm:"column:deactivated_at;type:timestamptz"`
	CreatedAt           time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ProviderCredential) TableName() string { return "voiceqc.provider_credentials" }

func autoMigrateModels() []any {
	return []any{
		&Dialog{},
		&DialogSegment{},
		&DialogTranslation{},
		&SegmentTranslation{},
		&ProviderCredential{},
	}
}
