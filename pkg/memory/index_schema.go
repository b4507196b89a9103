package memory

// IndexSchema is the JSON Schema for the persisted index document.
const IndexSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "lastFullScanAt", "entries", "stats"],
  "properties": {
    "version": {
      "type": "integer",
      "const": 1
    },
    "lastFullScanAt": {
      "type": "string",
      "minLength": 1
    },
    "entries": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["tags", "descriptionKeywords", "description", "mtime", "basename", "filename"],
        "properties": {
          "tags": {
            "type": "array",
            "items": { "type": "string" }
          },
          "descriptionKeywords": {
            "type": "array",
            "maxItems": 10,
            "items": { "type": "string" }
          },
          "description": { "type": "string" },
          "mtime": { "type": "integer" },
          "basename": { "type": "string" },
          "filename": { "type": "string" },
          "embedding": {
            "type": ["array", "null"],
            "items": { "type": "number" }
          }
        }
      }
    },
    "stats": {
      "type": "object",
      "required": ["totalFiles", "lastScanDurationMs"],
      "properties": {
        "totalFiles": { "type": "integer", "minimum": 0 },
        "lastScanDurationMs": { "type": "integer", "minimum": 0 }
      }
    }
  }
}`
