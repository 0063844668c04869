package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// ArtifactKey returns the store key of a stage artifact. With a job id the key
// is scoped to that run; without one it is the subject's latest-alias key.
func ArtifactKey(stage domain.StageName, subject, jobID string) string {
	if jobID == "" {
		return fmt.Sprintf("%s:%s", stage, subject)
	}
	return fmt.Sprintf("%s:%s:%s", stage, subject, jobID)
}

// ArtifactStore persists stage artifacts as JSON envelopes and validates them
// on read.
type ArtifactStore struct {
	kv      port.KVStore
	ttl     time.Duration
	schemas map[domain.StageName]*jsonschema.Schema
	now     func() time.Time
}

// NewArtifactStore compiles the payload schemas and returns the store.
func NewArtifactStore(kv port.KVStore, ttl time.Duration) (*ArtifactStore, error) {
	compiler := jsonschema.NewCompiler()
	for stage, schema := range artifactSchemas {
		if err := compiler.AddResource(schemaURL(stage), strings.NewReader(schema)); err != nil {
			return nil, fmt.Errorf("adding %s schema: %w", stage, err)
		}
	}
	schemas := make(map[domain.StageName]*jsonschema.Schema, len(artifactSchemas))
	for stage := range artifactSchemas {
		s, err := compiler.Compile(schemaURL(stage))
		if err != nil {
			return nil, fmt.Errorf("compiling %s schema: %w", stage, err)
		}
		schemas[stage] = s
	}
	return &ArtifactStore{kv: kv, ttl: ttl, schemas: schemas, now: time.Now}, nil
}

func schemaURL(stage domain.StageName) string {
	return fmt.Sprintf("%s.schema.json", stage)
}

// Put writes payload under the run-scoped key and the subject alias. A store
// failure is transient.
func (a *ArtifactStore) Put(ctx context.Context, stage domain.StageName, subject, jobID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Permanent(fmt.Errorf("encoding %s artifact: %w", stage, err))
	}
	env := domain.ArtifactEnvelope{
		Stage:     stage,
		Subject:   subject,
		JobID:     jobID,
		WrittenAt: a.now().UTC(),
		Payload:   body,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return domain.Permanent(fmt.Errorf("encoding %s envelope: %w", stage, err))
	}

	if err := a.kv.Set(ctx, ArtifactKey(stage, subject, jobID), raw, a.ttl); err != nil {
		return domain.Transient(fmt.Errorf("writing %s artifact: %w", stage, err))
	}
	if err := a.kv.Set(ctx, ArtifactKey(stage, subject, ""), raw, a.ttl); err != nil {
		return domain.Transient(fmt.Errorf("writing %s artifact alias: %w", stage, err))
	}
	return nil
}

// Envelope reads the run-scoped artifact and validates its payload. Missing,
// foreign or malformed artifacts fail permanently with ErrStageInputMissing.
func (a *ArtifactStore) Envelope(ctx context.Context, stage domain.StageName, subject, jobID string) (*domain.ArtifactEnvelope, error) {
	raw, err := a.kv.Get(ctx, ArtifactKey(stage, subject, jobID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Permanent(fmt.Errorf("%w: %s artifact for %s not found", domain.ErrStageInputMissing, stage, subject))
		}
		return nil, domain.Transient(fmt.Errorf("reading %s artifact: %w", stage, err))
	}

	var env domain.ArtifactEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, domain.Permanent(fmt.Errorf("%w: %s envelope is not valid JSON: %v", domain.ErrStageInputMissing, stage, err))
	}
	if env.Stage != stage || env.Subject != subject || (jobID != "" && env.JobID != jobID) {
		return nil, domain.Permanent(fmt.Errorf("%w: %s artifact belongs to another run", domain.ErrStageInputMissing, stage))
	}
	if err := a.Validate(stage, env.Payload); err != nil {
		return nil, domain.Permanent(fmt.Errorf("%w: %v", domain.ErrStageInputMissing, err))
	}
	return &env, nil
}

// Load reads and validates an artifact, then decodes its payload into out.
func (a *ArtifactStore) Load(ctx context.Context, stage domain.StageName, subject, jobID string, out any) error {
	env, err := a.Envelope(ctx, stage, subject, jobID)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return domain.Permanent(fmt.Errorf("%w: decoding %s payload: %v", domain.ErrStageInputMissing, stage, err))
	}
	return nil
}

// Latest returns the newest artifact written for a subject, for inspection.
func (a *ArtifactStore) Latest(ctx context.Context, stage domain.StageName, subject string) (*domain.ArtifactEnvelope, error) {
	raw, err := a.kv.Get(ctx, ArtifactKey(stage, subject, ""))
	if err != nil {
		return nil, err
	}
	var env domain.ArtifactEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding %s artifact: %w", stage, err)
	}
	return &env, nil
}

// Validate checks payload against the stage schema.
func (a *ArtifactStore) Validate(stage domain.StageName, payload []byte) error {
	schema, ok := a.schemas[stage]
	if !ok {
		return fmt.Errorf("no schema for stage %s", stage)
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("%s payload is not valid JSON: %w", stage, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%s payload failed validation: %w", stage, err)
	}
	return nil
}
