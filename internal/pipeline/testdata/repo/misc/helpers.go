package misc

func helper() {}
