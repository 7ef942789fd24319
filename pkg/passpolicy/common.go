package passpolicy

// commonPasswords is the built-in deny list, lowercased. Sourced from the
// top of the usual breach-corpus rankings; kept small because the policy
// engine is in the hot path of every password change.
var commonPasswords = []string{
	"password",
	"password1",
	"password123",
	"passw0rd",
	"123456",
	"1234567",
	"12345678",
	"123456789",
	"1234567890",
	"qwerty",
	"qwerty123",
	"qwertyuiop",
	"abc123",
	"letmein",
	"welcome",
	"welcome1",
	"monkey",
	"dragon",
	"master",
	"admin",
	"admin123",
	"administrator",
	"root",
	"login",
	"iloveyou",
	"sunshine",
	"princess",
	"football",
	"baseball",
	"superman",
	"batman",
	"trustno1",
	"shadow",
	"michael",
	"jennifer",
	"jordan",
	"hunter2",
	"111111",
	"000000",
	"696969",
	"654321",
	"121212",
	"a123456",
	"zaq12wsx",
	"1q2w3e4r",
	"qazwsx",
	"password!",
	"changeme",
	"default",
	"secret",
}
