package project

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"duet/internal/scene"
)

const projectColumns = "id, topic, style, questioner_ref, explainer_ref, background_ref, music_ref, target_duration_seconds, document_context, status, script_json, voiceover_path, output_path, error_message, error_kind, duration_seconds, review_notes, reviewed_by, reviewed_at, created_at, updated_at"

const sceneColumns = "scene_number, speaker_role, speaker_name, text, pose, start_time_seconds, duration_seconds, background_asset_ref"

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		id              int64
		topic           string
		style           string
		questionerRef   string
		explainerRef    string
		backgroundRef   sql.NullString
		musicRef        sql.NullString
		targetDuration  int
		documentContext sql.NullString
		statusStr       string
		scriptJSON      sql.NullString
		voiceoverPath   sql.NullString
		outputPath      sql.NullString
		errorMessage    sql.NullString
		errorKind       sql.NullString
		duration        sql.NullFloat64
		reviewNotes     sql.NullString
		reviewedBy      sql.NullString
		reviewedAtRaw   sql.NullString
		createdRaw      string
		updatedRaw      string
	)

	if err := scanner.Scan(
		&id,
		&topic,
		&style,
		&questionerRef,
		&explainerRef,
		&backgroundRef,
		&musicRef,
		&targetDuration,
		&documentContext,
		&statusStr,
		&scriptJSON,
		&voiceoverPath,
		&outputPath,
		&errorMessage,
		&errorKind,
		&duration,
		&reviewNotes,
		&reviewedBy,
		&reviewedAtRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	p := &Project{
		ID:                    id,
		Topic:                 topic,
		Style:                 style,
		QuestionerRef:         questionerRef,
		ExplainerRef:          explainerRef,
		BackgroundRef:         backgroundRef.String,
		MusicRef:              musicRef.String,
		TargetDurationSeconds: targetDuration,
		DocumentContext:       documentContext.String,
		Status:                Status(statusStr),
		VoiceoverPath:         voiceoverPath.String,
		OutputPath:            outputPath.String,
		ErrorMessage:          errorMessage.String,
		ErrorKind:             errorKind.String,
		ReviewNotes:           reviewNotes.String,
		ReviewedBy:            reviewedBy.String,
	}
	if scriptJSON.Valid && scriptJSON.String != "" {
		var script scene.Script
		if err := json.Unmarshal([]byte(scriptJSON.String), &script); err != nil {
			return nil, fmt.Errorf("decode script for project %d: %w", id, err)
		}
		p.Script = &script
	}
	if duration.Valid {
		d := duration.Float64
		p.DurationSeconds = &d
	}
	if reviewedAtRaw.Valid {
		if reviewed, err := parseTimeString(reviewedAtRaw.String); err == nil {
			p.ReviewedAt = &reviewed
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		p.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		p.UpdatedAt = updated
	}
	return p, nil
}

func scanScene(scanner interface{ Scan(dest ...any) error }) (scene.VideoScene, error) {
	var (
		sc         scene.VideoScene
		role       string
		pose       sql.NullString
		start      sql.NullFloat64
		duration   sql.NullFloat64
		background sql.NullString
	)
	if err := scanner.Scan(&sc.Number, &role, &sc.SpeakerName, &sc.Text, &pose, &start, &duration, &background); err != nil {
		return scene.VideoScene{}, err
	}
	sc.Role = scene.Role(role)
	sc.Pose = pose.String
	if start.Valid {
		v := start.Float64
		sc.StartSeconds = &v
	}
	if duration.Valid {
		v := duration.Float64
		sc.DurationSeconds = &v
	}
	if background.Valid {
		v := background.String
		sc.BackgroundRef = &v
	}
	return sc, nil
}

func encodeScript(script *scene.Script) (any, error) {
	if script == nil {
		return nil, nil
	}
	data, err := json.Marshal(script)
	if err != nil {
		return nil, fmt.Errorf("encode script: %w", err)
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableStringPtr(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

// timestampLayout is fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
