package schemas

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidID is returned for identifiers that are not 24 hex characters.
var ErrInvalidID = errors.New("invalid post id")

// PostId is the store-assigned identifier of a post. Ids are ObjectIDs, so
// ordering them approximates creation order.
type PostId primitive.ObjectID

func NewPostId() PostId {
	return PostId(primitive.NewObjectID())
}

func IDFromText(s string) (PostId, error) {
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return PostId{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return PostId(oid), nil
}

func (id PostId) Hex() string {
	return primitive.ObjectID(id).Hex()
}

func (id PostId) String() string {
	return id.Hex()
}

func (id PostId) IsZero() bool {
	return primitive.ObjectID(id).IsZero()
}

func (id PostId) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

func (id *PostId) UnmarshalText(text []byte) error {
	parsed, err := IDFromText(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalBSONValue stores the id as a native ObjectID rather than a byte array.
func (id PostId) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(primitive.ObjectID(id))
}

func (id *PostId) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	oid, ok := bson.RawValue{Type: t, Value: data}.ObjectIDOK()
	if !ok {
		return fmt.Errorf("%w: bson type %s", ErrInvalidID, t)
	}
	*id = PostId(oid)
	return nil
}
