package validators

import "go.mongodb.org/mongo-driver/bson"

const (
	datePattern      = `^[0-9]{4}-[0-9]{2}-[0-9]{2}$`
	timeOfDayPattern = `^(([01][0-9]|2[0-3]):[0-5][0-9]|24:00)$`
)

// reservationSchema describes both hold and booking subdocuments; only the
// timestamp field differs.
func reservationSchema(timestampField string) bson.M {
	return bson.M{
		"bsonType": "object",
		"required": []string{"token", "start_time", "end_time", timestampField},
		"properties": bson.M{
			"token": bson.M{
				"bsonType":  "string",
				"minLength": 16,
			},
			"customer_id": bson.M{
				"bsonType":  "string",
				"maxLength": 64,
			},
			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  timeOfDayPattern,
			},
			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  timeOfDayPattern,
			},
			timestampField: bson.M{
				"bsonType": "date",
			},
		},
	}
}

var SlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"provider_id",
			"date",
			"start_time",
			"end_time",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"provider_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  datePattern,
			},

			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  timeOfDayPattern,
			},

			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  timeOfDayPattern,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"available",
					"reserved",
					"booked",
				},
			},

			"hold":    reservationSchema("reserved_at"),
			"booking": reservationSchema("confirmed_at"),

			"released_tokens": bson.M{
				"bsonType": "array",
				"maxItems": 10,
				"items": bson.M{
					"bsonType": "string",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var SlotLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "owner", "expires_at"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"owner": bson.M{
				"bsonType": "string",
			},
			"expires_at": bson.M{
				"bsonType": "date",
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
