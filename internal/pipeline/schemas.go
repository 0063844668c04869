package pipeline

import "claimease/internal/domain"

// Artifact payload schemas. They check the shape the next stage depends on,
// not every field.
var artifactSchemas = map[domain.StageName]string{
	domain.StageAnalysis: `{
  "type": "object",
  "required": ["patient_name", "pa_form_path", "referral_path", "template_id", "form_analysis", "referral_analysis"],
  "properties": {
    "patient_name": {"type": "string", "minLength": 1},
    "pa_form_path": {"type": "string", "minLength": 1},
    "referral_path": {"type": "string", "minLength": 1},
    "template_id": {"type": "string"},
    "form_analysis": {
      "type": "object",
      "required": ["total_pages", "fields"],
      "properties": {
        "total_pages": {"type": "integer", "minimum": 0},
        "fields": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["field_name", "field_type"],
            "properties": {
              "field_name": {"type": "string", "minLength": 1},
              "field_type": {"type": "string"},
              "max_length": {"type": "integer", "minimum": 0}
            }
          }
        }
      }
    },
    "referral_analysis": {
      "type": "object",
      "required": ["total_pages", "summary"],
      "properties": {
        "total_pages": {"type": "integer", "minimum": 0}
      }
    }
  }
}`,
	domain.StageOCR: `{
  "type": "object",
  "required": ["ocr_results", "text", "metrics"],
  "properties": {
    "ocr_results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text", "confidence", "page"],
        "properties": {
          "text": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "page": {"type": "integer", "minimum": 1}
        }
      }
    },
    "text": {"type": "string"},
    "metrics": {
      "type": "object",
      "required": ["average_confidence"],
      "properties": {
        "average_confidence": {"type": "number", "minimum": 0, "maximum": 1}
      }
    }
  }
}`,
	domain.StageNLP: `{
  "type": "object",
  "required": ["entities"],
  "definitions": {
    "group": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["key", "text", "confidence"],
        "properties": {
          "key": {"type": "string", "minLength": 1},
          "text": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    }
  },
  "properties": {
    "entities": {
      "type": "object",
      "required": ["patient", "insurance", "medications", "providers", "diagnoses", "dates"],
      "properties": {
        "patient": {"$ref": "#/definitions/group"},
        "insurance": {"$ref": "#/definitions/group"},
        "medications": {"$ref": "#/definitions/group"},
        "providers": {"$ref": "#/definitions/group"},
        "diagnoses": {"$ref": "#/definitions/group"},
        "dates": {"$ref": "#/definitions/group"}
      }
    }
  }
}`,
	domain.StageForm: `{
  "type": "object",
  "required": ["filled_form_path", "fields", "missing_fields", "total_count"],
  "properties": {
    "filled_form_path": {"type": "string"},
    "fields": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["field_name", "status"],
        "properties": {
          "field_name": {"type": "string"},
          "status": {"enum": ["filled", "missing"]},
          "reason": {"enum": ["", "not_found_in_source", "validation_failed", "no_matching_pattern"]}
        }
      }
    },
    "missing_fields": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["field_name", "reason", "required"],
        "properties": {
          "reason": {"enum": ["not_found_in_source", "validation_failed", "no_matching_pattern"]}
        }
      }
    }
  }
}`,
	domain.StageConsolidation: `{
  "type": "object",
  "required": ["job_id", "patient_name", "missing_fields", "score"],
  "properties": {
    "job_id": {"type": "string", "minLength": 1},
    "missing_fields": {"type": "array"},
    "score": {
      "type": "object",
      "required": ["overall"],
      "properties": {
        "overall": {"type": "number", "minimum": 0, "maximum": 1}
      }
    }
  }
}`,
}
