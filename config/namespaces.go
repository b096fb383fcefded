package config

// Namespace identifies the logical bucket in the shared storage service
// that a schema's push blobs belong to. The transport layer uses it
// unmodified to route blobs; it never changes for a given schema type.
type Namespace int16

const (
	NamespaceUserProfile Namespace = 2
	NamespaceContacts    Namespace = 3
	// NamespaceConversations holds per-conversation volatile metadata
	// (read markers, disappearing-message settings).
	NamespaceConversations Namespace = 4
	NamespaceUserGroups    Namespace = 5

	// Group namespaces (config of the group itself, not one user's
	// settings for it).
	NamespaceGroupInfo    Namespace = 11
	NamespaceGroupMembers Namespace = 12
)

func (n Namespace) String() string {
	switch n {
	case NamespaceUserProfile:
		return "UserProfile"
	case NamespaceContacts:
		return "Contacts"
	case NamespaceConversations:
		return "Conversations"
	case NamespaceUserGroups:
		return "UserGroups"
	case NamespaceGroupInfo:
		return "GroupInfo"
	case NamespaceGroupMembers:
		return "GroupMembers"
	default:
		return "Unknown"
	}
}
